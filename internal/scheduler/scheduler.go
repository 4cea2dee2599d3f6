// Package scheduler is the single timer service the governance components tick on.
//
// Every callback and every task posted with Do runs while holding one run lock, so the
// components driven by a Loop see the same serialized, one-thing-at-a-time execution a
// cooperative event loop gives them and need no locking of their own.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vytor/ceplayer/internal/logger"
)

// ID identifies a registered callback.
type ID uint64

// Scheduler registers periodic callbacks and serializes work against them.
type Scheduler interface {
	// Every registers fn to run every period, first one period from now.
	Every(period time.Duration, fn func(now time.Time)) ID
	// Cancel unregisters a callback. Called from a callback or from inside Do, the
	// callback is guaranteed not to run again.
	Cancel(id ID)
	// Do runs fn serialized with all callbacks.
	Do(fn func())
	Now() time.Time
}

type registration struct {
	id     ID
	period time.Duration
	next   time.Time
	fn     func(time.Time)
}

// Loop is the Scheduler implementation. Run drives it from a ticker; tests drive it by
// advancing a fake clock and calling Fire.
type Loop struct {
	clock      clockwork.Clock
	resolution time.Duration
	log        *logger.Logger

	run sync.Mutex

	mu     sync.Mutex
	regs   map[ID]*registration
	nextID ID

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLoop creates a loop that checks for due callbacks every resolution.
func NewLoop(clock clockwork.Clock, resolution time.Duration) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if resolution <= 0 {
		resolution = 250 * time.Millisecond
	}
	return &Loop{
		clock:      clock,
		resolution: resolution,
		log:        logger.Default().WithPrefix("scheduler"),
		regs:       make(map[ID]*registration),
	}
}

func (l *Loop) Now() time.Time { return l.clock.Now() }

func (l *Loop) Every(period time.Duration, fn func(now time.Time)) ID {
	if period <= 0 {
		period = time.Second
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.regs[id] = &registration{
		id:     id,
		period: period,
		next:   l.clock.Now().Add(period),
		fn:     fn,
	}
	l.log.Debug("registered callback id=%d period=%v", id, period)
	return id
}

func (l *Loop) Cancel(id ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.regs[id]; ok {
		delete(l.regs, id)
		l.log.Debug("cancelled callback id=%d", id)
	}
}

func (l *Loop) Do(fn func()) {
	l.run.Lock()
	defer l.run.Unlock()
	fn()
}

// Len returns the number of registered callbacks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.regs)
}

// Fire runs every callback that is due at the clock's current time, in registration
// order. A callback that fell several periods behind runs once and is rescheduled past now.
func (l *Loop) Fire() {
	l.run.Lock()
	defer l.run.Unlock()

	now := l.clock.Now()

	l.mu.Lock()
	due := make([]*registration, 0, len(l.regs))
	for _, r := range l.regs {
		if !now.Before(r.next) {
			due = append(due, r)
		}
	}
	l.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].id < due[j].id })

	for _, r := range due {
		l.mu.Lock()
		_, live := l.regs[r.id]
		if live {
			for !r.next.After(now) {
				r.next = r.next.Add(r.period)
			}
		}
		l.mu.Unlock()
		if !live {
			continue
		}
		r.fn(now)
	}
}

// Start runs the loop in the background until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.Run(ctx)
	}()
}

// Run blocks, firing due callbacks every resolution until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	ticker := l.clock.NewTicker(l.resolution)
	defer ticker.Stop()
	l.log.Info("scheduler running, resolution=%v", l.resolution)
	for {
		select {
		case <-ctx.Done():
			l.log.Debug("scheduler stopping (context cancelled)")
			return
		case <-ticker.Chan():
			l.Fire()
		}
	}
}

// Stop cancels a loop started with Start and waits for it to exit.
func (l *Loop) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
	l.log.Info("scheduler stopped")
}
