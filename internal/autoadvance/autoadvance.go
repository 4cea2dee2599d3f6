// Package autoadvance implements the optional hands-free countdown ("salon mode").
//
// The timer only signals readiness. Whether the player actually moves on is decided by the
// caller, which must still consult the advancement governor.
package autoadvance

import (
	"time"

	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/models"
	"github.com/vytor/ceplayer/internal/scheduler"
)

const (
	// AlmostDoneSeconds is the threshold below which the countdown is flagged for display.
	AlmostDoneSeconds = 10
	// DefaultRebaseWindow is how soon after entry a revised estimate restarts the full countdown.
	DefaultRebaseWindow = 3 * time.Second
)

type State int

const (
	Disabled State = iota
	Counting
	Complete
)

func (s State) String() string {
	switch s {
	case Counting:
		return "counting"
	case Complete:
		return "complete"
	default:
		return "disabled"
	}
}

type Snapshot struct {
	Enabled          bool    `json:"enabled"`
	State            string  `json:"state"`
	TimeRemaining    int     `json:"time_remaining"`
	TotalTime        int     `json:"total_time"`
	ProgressPercent  float64 `json:"progress_percent"`
	IsAlmostDone     bool    `json:"is_almost_done"`
	AutoAdvanceReady bool    `json:"auto_advance_ready"`
	TimeDisplay      string  `json:"time_display"`
	TotalDisplay     string  `json:"total_display"`
}

// Timer is not safe for concurrent use; drive it from its scheduler's loop.
type Timer struct {
	sched        scheduler.Scheduler
	period       time.Duration
	rebaseWindow time.Duration
	log          *logger.Logger

	enabled bool
	state   State

	blockID  string
	hasBlock bool
	entered  time.Time
	total    int

	// anchor and span describe the running countdown: span seconds counted from anchor.
	anchor     time.Time
	span       int
	remaining  int
	almostDone bool

	tickID  scheduler.ID
	ticking bool

	onReady func(blockID string)
}

type Option func(*Timer)

// WithRebaseWindow overrides DefaultRebaseWindow.
func WithRebaseWindow(d time.Duration) Option {
	return func(t *Timer) { t.rebaseWindow = d }
}

func New(s scheduler.Scheduler, period time.Duration, opts ...Option) *Timer {
	if period <= 0 {
		period = time.Second
	}
	t := &Timer{
		sched:        s,
		period:       period,
		rebaseWindow: DefaultRebaseWindow,
		log:          logger.Default().WithPrefix("autoadvance"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnReady sets the hook called once when a countdown reaches zero.
func (t *Timer) OnReady(fn func(blockID string)) {
	t.onReady = fn
}

func (t *Timer) Enabled() bool { return t.enabled }

func (t *Timer) State() State { return t.state }

// Anchor returns the instant the current countdown counts from. An early rebase or a
// restart moves it.
func (t *Timer) Anchor() time.Time { return t.anchor }

// Ready reports whether the countdown for the current block has finished.
func (t *Timer) Ready() bool { return t.state == Complete }

// Enter resets the timer for a newly entered block.
func (t *Timer) Enter(blockID string, totalSeconds int) {
	t.blockID = blockID
	t.hasBlock = true
	t.entered = t.sched.Now()
	t.total = max(0, totalSeconds)
	if !t.enabled {
		t.idle()
		return
	}
	t.restart(t.entered)
}

// UpdateEstimate applies a revised total. Shortly after entry the countdown restarts at the new
// total; later, time already counted is kept and the remainder becomes total minus elapsed.
func (t *Timer) UpdateEstimate(totalSeconds int) {
	if !t.hasBlock {
		return
	}
	totalSeconds = max(0, totalSeconds)
	if totalSeconds == t.total {
		return
	}
	t.total = totalSeconds
	switch t.state {
	case Disabled:
		t.remaining = t.total
	case Counting:
		now := t.sched.Now()
		if now.Sub(t.entered) < t.rebaseWindow {
			t.log.Debug("early rebase block=%s total=%ds", t.blockID, t.total)
			t.anchor = now
		}
		t.span = t.total
		t.evaluate(now)
	case Complete:
		// finished countdowns stay finished for this block
	}
}

// Enable starts a fresh countdown from the full current estimate.
func (t *Timer) Enable() {
	if t.enabled {
		return
	}
	t.enabled = true
	t.log.Info("auto-advance enabled")
	if t.hasBlock {
		t.restart(t.sched.Now())
	}
}

// Disable cancels any countdown. Nothing carries over to the next Enable.
func (t *Timer) Disable() {
	if !t.enabled {
		return
	}
	t.enabled = false
	t.log.Info("auto-advance disabled")
	t.idle()
}

// Toggle flips the mode and returns the new setting.
func (t *Timer) Toggle() bool {
	if t.enabled {
		t.Disable()
	} else {
		t.Enable()
	}
	return t.enabled
}

// Stop releases the tick and forgets the block. The enabled setting survives.
func (t *Timer) Stop() {
	t.stopTicking()
	t.hasBlock = false
	t.blockID = ""
	t.total = 0
	t.span = 0
	t.remaining = 0
	t.almostDone = false
	t.state = Disabled
}

func (t *Timer) Snapshot() Snapshot {
	if t.state == Counting {
		t.evaluate(t.sched.Now())
	}
	s := Snapshot{
		Enabled:          t.enabled,
		State:            t.state.String(),
		TimeRemaining:    t.remaining,
		TotalTime:        t.total,
		IsAlmostDone:     t.almostDone,
		AutoAdvanceReady: t.state == Complete,
		TimeDisplay:      models.FormatClock(t.remaining),
		TotalDisplay:     models.FormatClock(t.total),
	}
	switch {
	case t.state == Complete:
		s.ProgressPercent = 100
	case t.state == Counting && t.span > 0:
		s.ProgressPercent = min(100, float64(t.span-t.remaining)/float64(t.span)*100)
	}
	return s
}

func (t *Timer) restart(now time.Time) {
	t.stopTicking()
	t.state = Counting
	t.anchor = now
	t.span = t.total
	t.remaining = t.total
	t.almostDone = false
	t.tickID = t.sched.Every(t.period, t.tick)
	t.ticking = true
	t.log.Debug("countdown started block=%s total=%ds", t.blockID, t.total)
	t.evaluate(now)
}

func (t *Timer) idle() {
	t.stopTicking()
	t.state = Disabled
	t.remaining = t.total
	t.span = t.total
	t.almostDone = false
}

func (t *Timer) tick(now time.Time) {
	t.evaluate(now)
}

func (t *Timer) evaluate(now time.Time) {
	if t.state != Counting {
		return
	}
	elapsed := 0
	if d := now.Sub(t.anchor); d > 0 {
		elapsed = int(d / time.Second)
	}
	t.remaining = max(0, t.span-elapsed)
	if t.remaining < AlmostDoneSeconds {
		t.almostDone = true
	}
	if t.remaining > 0 {
		return
	}
	t.state = Complete
	t.stopTicking()
	t.log.Debug("countdown complete block=%s", t.blockID)
	if t.onReady != nil {
		t.onReady(t.blockID)
	}
}

func (t *Timer) stopTicking() {
	if t.ticking {
		t.sched.Cancel(t.tickID)
		t.ticking = false
	}
}
