// Package governor gates forward navigation until a block's required dwell time has passed.
package governor

import (
	"time"

	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/models"
	"github.com/vytor/ceplayer/internal/scheduler"
)

type State int

const (
	Gated State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "gated"
}

// Snapshot is what the player shell renders for the gate.
type Snapshot struct {
	BlockID              string  `json:"block_id"`
	State                string  `json:"state"`
	CanAdvance           bool    `json:"can_advance"`
	TimeRemaining        int     `json:"time_remaining"`
	TimeRemainingDisplay string  `json:"time_remaining_display"`
	ProgressPercent      float64 `json:"progress_percent"`
	ElapsedSeconds       int     `json:"elapsed_seconds"`
	RequiredSeconds      int     `json:"required_seconds"`
}

// Governor is not safe for concurrent use; drive it from its scheduler's loop.
type Governor struct {
	sched  scheduler.Scheduler
	period time.Duration
	log    *logger.Logger

	blockID  string
	entered  time.Time
	required int
	elapsed  int
	state    State
	active   bool
	tickID   scheduler.ID
	ticking  bool

	onOpen func(blockID string)
}

// New creates a governor ticking every period on s.
func New(s scheduler.Scheduler, period time.Duration) *Governor {
	if period <= 0 {
		period = time.Second
	}
	return &Governor{
		sched:  s,
		period: period,
		log:    logger.Default().WithPrefix("governor"),
	}
}

// OnOpen sets a hook called once per block when the gate opens.
func (g *Governor) OnOpen(fn func(blockID string)) {
	g.onOpen = fn
}

// Enter starts gating a newly entered block, replacing any previous one.
func (g *Governor) Enter(blockID string, requiredSeconds int) {
	g.stopTicking()
	g.blockID = blockID
	g.entered = g.sched.Now()
	g.required = max(0, requiredSeconds)
	g.elapsed = 0
	g.state = Gated
	g.active = true
	g.log.Debug("entered block=%s required=%ds", blockID, g.required)

	g.tickID = g.sched.Every(g.period, g.tick)
	g.ticking = true
	g.evaluate(g.entered)
}

// UpdateEstimate swaps in a revised requirement for the current block. Elapsed time is
// measured from entry, so nothing already served is lost; an open gate stays open.
func (g *Governor) UpdateEstimate(requiredSeconds int) {
	if !g.active {
		return
	}
	requiredSeconds = max(0, requiredSeconds)
	if requiredSeconds == g.required {
		return
	}
	g.log.Debug("estimate revised block=%s required=%ds->%ds", g.blockID, g.required, requiredSeconds)
	g.required = requiredSeconds
	g.evaluate(g.sched.Now())
}

func (g *Governor) tick(now time.Time) {
	g.evaluate(now)
}

func (g *Governor) evaluate(now time.Time) {
	if !g.active {
		return
	}
	if d := now.Sub(g.entered); d > 0 {
		g.elapsed = int(d / time.Second)
	}
	if g.state == Open || g.elapsed < g.required {
		return
	}
	g.state = Open
	g.stopTicking()
	g.log.Debug("gate open block=%s after %ds", g.blockID, g.elapsed)
	if g.onOpen != nil {
		g.onOpen(g.blockID)
	}
}

// CanAdvance re-reads the clock before answering.
func (g *Governor) CanAdvance() bool {
	g.evaluate(g.sched.Now())
	return g.active && g.state == Open
}

func (g *Governor) State() State { return g.state }

func (g *Governor) BlockID() string { return g.blockID }

// Snapshot reports the gate as of now.
func (g *Governor) Snapshot() Snapshot {
	g.evaluate(g.sched.Now())
	s := Snapshot{
		BlockID:         g.blockID,
		State:           g.state.String(),
		CanAdvance:      g.active && g.state == Open,
		ElapsedSeconds:  g.elapsed,
		RequiredSeconds: g.required,
	}
	if !s.CanAdvance {
		s.TimeRemaining = max(0, g.required-g.elapsed)
	}
	s.TimeRemainingDisplay = models.FormatClock(s.TimeRemaining)
	switch {
	case s.CanAdvance, g.required == 0:
		s.ProgressPercent = 100
	default:
		s.ProgressPercent = min(100, float64(g.elapsed)/float64(g.required)*100)
	}
	return s
}

// Stop cancels the tick and forgets the block; the gate reads as closed until the next Enter.
func (g *Governor) Stop() {
	g.stopTicking()
	g.active = false
	g.state = Gated
}

func (g *Governor) stopTicking() {
	if g.ticking {
		g.sched.Cancel(g.tickID)
		g.ticking = false
	}
}
