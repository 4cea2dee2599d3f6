// Package player composes the timing components for one learner: the dwell-time
// accumulator, the advancement governor, the auto-advance countdown and the course content.
//
// All player state is owned by the scheduler loop. Public methods post their work with
// Do; governor, countdown and display callbacks already run on the loop.
//
// A player only counts time while its learner is present: an event stream is attached, or
// a request arrived within the idle limit. Once the learner is absent the player suspends,
// crediting the open session up to the moment the learner was last seen.
package player

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vytor/ceplayer/internal/autoadvance"
	"github.com/vytor/ceplayer/internal/content"
	"github.com/vytor/ceplayer/internal/errors"
	"github.com/vytor/ceplayer/internal/estimate"
	"github.com/vytor/ceplayer/internal/governor"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/metrics"
	"github.com/vytor/ceplayer/internal/models"
	"github.com/vytor/ceplayer/internal/scheduler"
	"github.com/vytor/ceplayer/internal/services"
)

// DefaultIdleTimeout is how long a learner with no event stream may go without a request
// before the player suspends.
const DefaultIdleTimeout = 2 * time.Minute

// Config tunes every player a Registry creates.
type Config struct {
	Buffers          estimate.Buffers
	TickInterval     time.Duration
	MinimumSeconds   int
	DevModeAvailable bool
	IdleTimeout      time.Duration
}

func (c Config) withDefaults() Config {
	if c.Buffers == (estimate.Buffers{}) {
		c.Buffers = estimate.DefaultBuffers
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.MinimumSeconds <= 0 {
		c.MinimumSeconds = models.MinimumSecondsPerHour
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	return c
}

// Snapshot is everything the player shell renders, published on every display tick.
type Snapshot struct {
	LearnerID        string               `json:"learner_id"`
	Loaded           bool                 `json:"loaded"`
	Position         content.Position     `json:"position"`
	Block            *content.Block       `json:"block,omitempty"`
	BlockCount       int                  `json:"block_count"`
	HourCount        int                  `json:"hour_count"`
	AtStart          bool                 `json:"at_start"`
	AtEnd            bool                 `json:"at_end"`
	Governor         governor.Snapshot    `json:"governor"`
	AutoAdvance      autoadvance.Snapshot `json:"auto_advance"`
	PendingAdvance   bool                 `json:"pending_advance"`
	AudioSeconds     float64              `json:"audio_seconds,omitempty"`
	HourSeconds      int                  `json:"hour_seconds"`
	HourRemaining    int                  `json:"hour_remaining"`
	HourTimeDisplay  string               `json:"hour_time_display"`
	ImageCycling     bool                 `json:"image_cycling"`
	ImageIndex       int                  `json:"image_index"`
	ImageIntervalMs  int                  `json:"image_interval_ms"`
	DevMode          bool                 `json:"dev_mode"`
	DevModeAvailable bool                 `json:"dev_mode_available"`
	Suspended        bool                 `json:"suspended"`
	Watchers         int                  `json:"watchers"`
	LastError        string               `json:"last_error,omitempty"`
}

// Player drives one learner through the course.
type Player struct {
	learnerID string
	sched     scheduler.Scheduler
	source    *content.Source
	progress  services.ProgressService
	metrics   *metrics.Recorder
	cfg       Config
	log       *logger.Logger
	ctx       context.Context

	gov  *governor.Governor
	auto *autoadvance.Timer

	pos          content.Position
	block        *content.Block
	started      bool
	audioSeconds float64

	hourBase   int
	hourBaseAt time.Time

	pending   bool
	devMode   bool
	lastError string

	lastSeen  time.Time
	watchers  int
	suspended bool

	displayID  scheduler.ID
	displaying bool
	closed     bool

	publish func(Snapshot)
}

// New creates a player. ctx carries the logger used for work the loop starts on its own,
// such as an auto-advance.
func New(ctx context.Context, learnerID string, sched scheduler.Scheduler, source *content.Source,
	progress services.ProgressService, rec *metrics.Recorder, cfg Config) *Player {
	cfg = cfg.withDefaults()
	if rec == nil {
		rec = metrics.Noop()
	}
	log := logger.FromContext(ctx).WithPrefix("player").WithField("learner_id", learnerID)
	p := &Player{
		learnerID: learnerID,
		sched:     sched,
		source:    source,
		progress:  progress,
		metrics:   rec,
		cfg:       cfg,
		log:       log,
		ctx:       logger.NewContext(context.WithoutCancel(ctx), log),
		gov:       governor.New(sched, cfg.TickInterval),
		auto:      autoadvance.New(sched, cfg.TickInterval),
		lastSeen:  sched.Now(),
	}
	p.gov.OnOpen(p.onGateOpen)
	p.auto.OnReady(p.onCountdownDone)
	rec.PlayerOpened(p.ctx)
	return p
}

func (p *Player) LearnerID() string { return p.learnerID }

// OnSnapshot sets the hook that receives a snapshot on every display tick and after
// every state change.
func (p *Player) OnSnapshot(fn func(Snapshot)) {
	p.sched.Do(func() { p.publish = fn })
}

func blockKey(pos content.Position) string {
	return fmt.Sprintf("%d/%s", pos.Hour, pos.BlockID)
}

// Enter shows the block at hour and zero-based index.
func (p *Player) Enter(ctx context.Context, hour, index int) error {
	var err error
	p.sched.Do(func() {
		p.arrive(ctx)
		pos, ok := p.source.Outline().At(hour, index)
		if !ok {
			err = errors.NewValidationError("position", fmt.Sprintf("no block %d in hour %d", index, hour))
			return
		}
		err = p.enter(ctx, pos)
	})
	return err
}

// Resume enters the block the ledger last recorded, or the first block of the first
// incomplete hour.
func (p *Player) Resume(ctx context.Context) error {
	var err error
	p.sched.Do(func() {
		p.arrive(ctx)
		var pos content.Position
		pos, err = p.resumePosition(ctx)
		if err != nil {
			return
		}
		err = p.enter(ctx, pos)
	})
	return err
}

func (p *Player) resumePosition(ctx context.Context) (content.Position, error) {
	outline := p.source.Outline()
	l, err := p.progress.Ledger(ctx)
	if err != nil {
		return content.Position{}, err
	}
	if l.CurrentHour > 0 {
		if i := slices.Index(outline.Blocks(l.CurrentHour), l.CurrentBlock); i >= 0 {
			pos, _ := outline.At(l.CurrentHour, i)
			return pos, nil
		}
	}
	hour, err := p.progress.ResumeHour(ctx)
	if err != nil {
		return content.Position{}, err
	}
	pos, ok := outline.At(hour, 0)
	if !ok {
		pos, _ = outline.At(1, 0)
	}
	return pos, nil
}

// enter runs on the loop.
func (p *Player) enter(ctx context.Context, pos content.Position) error {
	if p.closed {
		return fmt.Errorf("player for %s is closed", p.learnerID)
	}
	log := logger.FromContext(ctx).WithPrefix("player").WithField("learner_id", p.learnerID)

	if !p.started {
		if _, err := p.progress.DiscardSession(ctx); err != nil {
			return err
		}
		p.started = true
	}

	p.pending = false
	p.suspended = false
	p.pos = pos
	block, err := p.source.Load(ctx, pos.Hour, pos.BlockID)
	if err != nil {
		log.Warn("failed to load block hour=%d block=%s: %v", pos.Hour, pos.BlockID, err)
		if _, cerr := p.progress.CloseSession(ctx); cerr != nil {
			log.Error("failed to close session after load failure: %v", cerr)
		}
		p.unload(ctx, err)
		return err
	}

	credited, err := p.progress.Transition(ctx, pos.Hour, pos.BlockID)
	if err != nil {
		log.Error("failed to record transition to hour=%d block=%s: %v", pos.Hour, pos.BlockID, err)
		p.unload(ctx, err)
		return err
	}
	log.Debug("entered hour=%d block=%s (credited previous %ds)", pos.Hour, pos.BlockID, credited)

	p.block = block
	p.lastError = ""
	p.audioSeconds = 0
	shape := block.Shape(0)
	key := blockKey(pos)
	p.gov.Enter(key, p.cfg.Buffers.Estimate(shape, estimate.GovernorBuffer))
	p.auto.Enter(key, p.cfg.Buffers.Estimate(shape, estimate.AutoAdvanceBuffer))
	p.refreshHourTime(ctx)
	p.startDisplay()
	p.emit()
	return nil
}

// unload leaves the player on a position with nothing shown and no timers running, so a
// retry can enter the same position again.
func (p *Player) unload(ctx context.Context, cause error) {
	p.block = nil
	p.lastError = cause.Error()
	p.gov.Stop()
	p.auto.Stop()
	p.stopDisplay()
	p.refreshHourTime(ctx)
	p.emit()
}

func (p *Player) noBlock() error {
	if p.suspended {
		return errors.NewBadRequestError("player suspended while the learner was away; resume to continue")
	}
	return errors.NewBadRequestError("no block loaded")
}

// Touch records that the learner is present.
func (p *Player) Touch(ctx context.Context) {
	p.sched.Do(func() { p.arrive(ctx) })
}

// Watch marks the learner present until release is called. An open event stream holds
// one for as long as it is connected.
func (p *Player) Watch(ctx context.Context) (release func()) {
	p.sched.Do(func() {
		p.arrive(ctx)
		p.watchers++
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			p.sched.Do(func() {
				p.watchers--
				p.lastSeen = p.sched.Now()
			})
		})
	}
}

// Idle reports whether the learner has been absent longer than the idle limit.
func (p *Player) Idle() bool {
	var idle bool
	p.sched.Do(func() { idle = p.absent(p.sched.Now()) })
	return idle
}

func (p *Player) absent(now time.Time) bool {
	return p.watchers == 0 && now.Sub(p.lastSeen) > p.cfg.IdleTimeout
}

// arrive runs on the loop at the start of every learner request. A learner returning
// after an absence finds the player suspended as of the last time they were seen.
func (p *Player) arrive(ctx context.Context) {
	now := p.sched.Now()
	if p.absent(now) {
		p.suspend(ctx)
	}
	p.lastSeen = now
}

// suspend stops every timer and closes the open session at the last time the learner
// was seen. Entering a block again resumes counting.
func (p *Player) suspend(ctx context.Context) {
	if p.suspended || p.closed || !p.started {
		return
	}
	p.gov.Stop()
	p.auto.Stop()
	p.stopDisplay()
	p.pending = false
	credited, err := p.progress.CloseSessionAt(ctx, p.lastSeen)
	if err != nil {
		p.log.Error("failed to close session on suspend: %v", err)
	}
	p.log.Info("learner away since %s, suspended at hour=%d block=%s (credited %ds)",
		p.lastSeen.Format(time.RFC3339), p.pos.Hour, p.pos.BlockID, credited)
	p.metrics.PlayerSuspended(ctx)
	p.block = nil
	p.suspended = true
	p.refreshHourTime(ctx)
	p.emit()
}

// Next advances manually. A closed gate refuses with ErrGated unless developer mode is on.
// At the last block of the course it stays put.
func (p *Player) Next(ctx context.Context) error {
	var err error
	p.sched.Do(func() {
		p.arrive(ctx)
		if p.block == nil {
			err = p.noBlock()
			return
		}
		if !p.gov.CanAdvance() {
			if !p.devMode {
				err = fmt.Errorf("hour %d block %s: %w", p.pos.Hour, p.pos.BlockID, errors.ErrGated)
				return
			}
			logger.FromContext(ctx).WithField("learner_id", p.learnerID).
				Warn("DEV MODE: bypassing gate for hour=%d block=%s with %ds remaining",
					p.pos.Hour, p.pos.BlockID, p.gov.Snapshot().TimeRemaining)
			p.metrics.GateBypassed(ctx)
		}
		next, ok := p.source.Outline().Next(p.pos)
		if !ok {
			return
		}
		err = p.enter(ctx, next)
	})
	return err
}

// Prev goes back one block. It is never gated.
func (p *Player) Prev(ctx context.Context) error {
	var err error
	p.sched.Do(func() {
		p.arrive(ctx)
		prev, ok := p.source.Outline().Prev(p.pos)
		if !ok {
			return
		}
		err = p.enter(ctx, prev)
	})
	return err
}

// ReportAudioDuration applies the duration the shell measured for the block's audio.
// Durations that are not finite and positive, and reports for blocks without audio, are
// ignored.
func (p *Player) ReportAudioDuration(ctx context.Context, seconds float64) {
	p.sched.Do(func() {
		p.arrive(ctx)
		if p.block == nil || p.block.AudioURL == "" {
			return
		}
		shape := p.block.Shape(seconds)
		if !shape.AudioKnown() {
			logger.FromContext(ctx).Debug("ignoring unusable audio duration %v", seconds)
			return
		}
		p.audioSeconds = seconds
		p.gov.UpdateEstimate(p.cfg.Buffers.Estimate(shape, estimate.GovernorBuffer))
		p.auto.UpdateEstimate(p.cfg.Buffers.Estimate(shape, estimate.AutoAdvanceBuffer))
		p.emit()
	})
}

// MarkTab records a viewed text tab for the current block.
func (p *Player) MarkTab(ctx context.Context, tab string) error {
	if !slices.Contains(content.TabNames, tab) {
		return errors.NewValidationError("tab", "must be one of scenario, connection, law")
	}
	var err error
	p.sched.Do(func() {
		p.arrive(ctx)
		if p.block == nil {
			err = p.noBlock()
			return
		}
		err = p.progress.MarkTabViewed(ctx, p.pos.Hour, p.pos.BlockID, tab)
	})
	return err
}

// CompleteBlock marks the current block complete.
func (p *Player) CompleteBlock(ctx context.Context) error {
	var err error
	p.sched.Do(func() {
		p.arrive(ctx)
		if p.block == nil {
			err = p.noBlock()
			return
		}
		err = p.progress.CompleteBlock(ctx, p.pos.Hour, p.pos.BlockID)
	})
	return err
}

// ToggleAutoAdvance flips auto-advance and returns the new setting.
func (p *Player) ToggleAutoAdvance(ctx context.Context) bool {
	var enabled bool
	p.sched.Do(func() {
		p.arrive(ctx)
		enabled = p.auto.Toggle()
		if !enabled {
			p.pending = false
		}
		logger.FromContext(ctx).Info("auto-advance %s", onOff(enabled))
		p.emit()
	})
	return enabled
}

// ToggleDevMode flips the developer override. It fails when the deployment does not
// make the override available.
func (p *Player) ToggleDevMode(ctx context.Context) (bool, error) {
	if !p.cfg.DevModeAvailable {
		return false, errors.ErrDevModeUnavailable
	}
	var enabled bool
	p.sched.Do(func() {
		p.arrive(ctx)
		p.devMode = !p.devMode
		enabled = p.devMode
		logger.FromContext(ctx).WithField("learner_id", p.learnerID).
			Warn("DEV MODE %s: gate may be bypassed on manual advance", onOff(enabled))
		p.emit()
	})
	return enabled, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (p *Player) onGateOpen(key string) {
	if p.block == nil || key != blockKey(p.pos) {
		return
	}
	if p.pending {
		p.tryAutoAdvance()
	}
	p.emit()
}

func (p *Player) onCountdownDone(key string) {
	if p.block == nil || key != blockKey(p.pos) {
		return
	}
	p.tryAutoAdvance()
}

// tryAutoAdvance moves on when the countdown finished and the gate is open; otherwise
// the advance stays pending until the gate opens.
func (p *Player) tryAutoAdvance() {
	// countdown and gate callbacks run ahead of the display tick in the same pass
	if p.absent(p.sched.Now()) {
		p.suspend(p.ctx)
		return
	}
	if !p.auto.Enabled() || !p.auto.Ready() {
		p.pending = false
		return
	}
	if !p.gov.CanAdvance() {
		if !p.pending {
			p.log.Debug("auto-advance waiting on gate for %s", blockKey(p.pos))
		}
		p.pending = true
		return
	}
	p.pending = false
	next, ok := p.source.Outline().Next(p.pos)
	if !ok {
		p.log.Info("auto-advance reached the end of the course")
		return
	}
	p.metrics.AutoAdvanced(p.ctx)
	if err := p.enter(p.ctx, next); err != nil {
		p.log.Error("auto-advance to hour=%d block=%s failed: %v", next.Hour, next.BlockID, err)
	}
}

func (p *Player) refreshHourTime(ctx context.Context) {
	secs, err := p.progress.LiveSecondsForHour(ctx, p.pos.Hour)
	if err != nil {
		p.log.Warn("failed to read hour time: %v", err)
		return
	}
	p.hourBase = secs
	p.hourBaseAt = p.sched.Now()
}

func (p *Player) hourSeconds(now time.Time) int {
	secs := p.hourBase
	if p.block != nil {
		if d := now.Sub(p.hourBaseAt); d > 0 {
			secs += int(d / time.Second)
		}
	}
	return secs
}

func (p *Player) startDisplay() {
	if p.displaying {
		return
	}
	p.displayID = p.sched.Every(p.cfg.TickInterval, p.displayTick)
	p.displaying = true
}

func (p *Player) stopDisplay() {
	if p.displaying {
		p.sched.Cancel(p.displayID)
		p.displaying = false
	}
}

func (p *Player) displayTick(now time.Time) {
	if p.absent(now) {
		p.suspend(p.ctx)
		return
	}
	if p.pending {
		p.tryAutoAdvance()
	}
	p.emit()
}

func (p *Player) emit() {
	if p.publish != nil {
		p.publish(p.snapshot())
	}
}

// Snapshot returns the current player state.
func (p *Player) Snapshot() Snapshot {
	var s Snapshot
	p.sched.Do(func() { s = p.snapshot() })
	return s
}

func (p *Player) snapshot() Snapshot {
	now := p.sched.Now()
	outline := p.source.Outline()
	s := Snapshot{
		LearnerID:        p.learnerID,
		Loaded:           p.block != nil,
		Position:         p.pos,
		Block:            p.block,
		BlockCount:       len(outline.Blocks(p.pos.Hour)),
		HourCount:        outline.HourCount(),
		Governor:         p.gov.Snapshot(),
		AutoAdvance:      p.auto.Snapshot(),
		PendingAdvance:   p.pending,
		AudioSeconds:     p.audioSeconds,
		DevMode:          p.devMode,
		DevModeAvailable: p.cfg.DevModeAvailable,
		Suspended:        p.suspended,
		Watchers:         p.watchers,
		LastError:        p.lastError,
	}
	if p.pos.Hour > 0 {
		_, hasPrev := outline.Prev(p.pos)
		_, hasNext := outline.Next(p.pos)
		s.AtStart, s.AtEnd = !hasPrev, !hasNext
	}
	s.HourSeconds = p.hourSeconds(now)
	s.HourRemaining = max(0, p.cfg.MinimumSeconds-s.HourSeconds)
	s.HourTimeDisplay = models.FormatClock(s.HourSeconds) + " / " + models.FormatClock(p.cfg.MinimumSeconds)

	if p.block != nil && p.block.CyclesImages() && p.auto.Enabled() {
		n := len(p.block.ImageURLs)
		total := s.AutoAdvance.TotalTime
		s.ImageCycling = true
		s.ImageIntervalMs = estimate.ImageCycleInterval(total, n)
		s.ImageIndex = estimate.ImageIndexAt(now.Sub(p.auto.Anchor()).Milliseconds(), total, n)
	}
	return s
}

// Close stops every callback the player registered and credits the open session, up to
// the last time the learner was seen when they are away.
func (p *Player) Close(ctx context.Context) error {
	var err error
	p.sched.Do(func() {
		if p.closed {
			return
		}
		p.closed = true
		p.gov.Stop()
		p.auto.Stop()
		p.stopDisplay()
		p.pending = false
		if p.started {
			if p.absent(p.sched.Now()) {
				_, err = p.progress.CloseSessionAt(ctx, p.lastSeen)
			} else {
				_, err = p.progress.CloseSession(ctx)
			}
		}
		p.block = nil
		p.metrics.PlayerClosed(ctx)
	})
	return err
}
