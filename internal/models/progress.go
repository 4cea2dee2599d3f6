package models

import (
	"sort"
	"time"
)

// MinimumSecondsPerHour is the regulatory floor of time-on-task for one credit hour (50 minutes).
const MinimumSecondsPerHour = 3000

// DefaultNamespace is the storage key the ledger lives under when no learner scoping is applied.
const DefaultNamespace = "ceplayer-progress"

type BlockStatus string

const (
	BlockInProgress BlockStatus = "in_progress"
	BlockComplete   BlockStatus = "complete"
)

// BlockProgress accumulates dwell time for one block across every visit.
type BlockProgress struct {
	TimeSecondsAccumulated int         `json:"time_seconds_accumulated"`
	TabsViewed             []string    `json:"tabs_viewed"`
	Status                 BlockStatus `json:"status"`
	StartedAt              *time.Time  `json:"started_at"`
	CompletedAt            *time.Time  `json:"completed_at"`
}

// HasTab reports whether the tab was already marked as viewed.
func (b *BlockProgress) HasTab(tab string) bool {
	for _, t := range b.TabsViewed {
		if t == tab {
			return true
		}
	}
	return false
}

// HourProgress is the compliance record of one credit hour.
type HourProgress struct {
	TotalSecondsElapsed int                       `json:"total_seconds_elapsed"`
	Completed           bool                      `json:"completed"`
	StartedAt           *time.Time                `json:"started_at"`
	CompletedAt         *time.Time                `json:"completed_at"`
	Blocks              map[string]*BlockProgress `json:"blocks"`
}

func newHourProgress() *HourProgress {
	return &HourProgress{Blocks: make(map[string]*BlockProgress)}
}

// BlockIDs returns the IDs of blocks visited in this hour, sorted.
func (h *HourProgress) BlockIDs() []string {
	ids := make([]string, 0, len(h.Blocks))
	for id := range h.Blocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StudentInfo identifies the learner on completion certificates.
type StudentInfo struct {
	Name    string `json:"name"`
	License string `json:"license"`
	Email   string `json:"email"`
}

// Ledger is the single durable record for one namespace: per-hour progress plus the
// active session. CurrentHour and CurrentBlock double as resume hints for the player.
type Ledger struct {
	Namespace    string                `json:"namespace"`
	Hours        map[int]*HourProgress `json:"hours"`
	CurrentHour  int                   `json:"current_hour"`
	CurrentBlock string                `json:"current_block"`
	SessionStart Instant               `json:"session_start"`
	Student      StudentInfo           `json:"student"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// NewLedger returns a zero-valued ledger with hours 1..hourCount.
func NewLedger(namespace string, hourCount int) *Ledger {
	l := &Ledger{
		Namespace: namespace,
		Hours:     make(map[int]*HourProgress, hourCount),
	}
	for h := 1; h <= hourCount; h++ {
		l.Hours[h] = newHourProgress()
	}
	return l
}

// Normalize fills maps and slices a decoder may have left nil.
func (l *Ledger) Normalize(hourCount int) {
	if l.Hours == nil {
		l.Hours = make(map[int]*HourProgress, hourCount)
	}
	for h := 1; h <= hourCount; h++ {
		if l.Hours[h] == nil {
			l.Hours[h] = newHourProgress()
		}
	}
	for _, hp := range l.Hours {
		if hp.Blocks == nil {
			hp.Blocks = make(map[string]*BlockProgress)
		}
		for _, bp := range hp.Blocks {
			if bp.TabsViewed == nil {
				bp.TabsViewed = []string{}
			}
			if bp.Status == "" {
				bp.Status = BlockInProgress
			}
		}
	}
}

// Hour returns the record for hour h, creating it on first access.
func (l *Ledger) Hour(h int) *HourProgress {
	if l.Hours == nil {
		l.Hours = make(map[int]*HourProgress)
	}
	hp, ok := l.Hours[h]
	if !ok || hp == nil {
		hp = newHourProgress()
		l.Hours[h] = hp
	}
	return hp
}

// Block returns the record for a block in hour h, creating both on first access.
func (l *Ledger) Block(h int, blockID string) *BlockProgress {
	hp := l.Hour(h)
	bp, ok := hp.Blocks[blockID]
	if !ok || bp == nil {
		bp = &BlockProgress{TabsViewed: []string{}, Status: BlockInProgress}
		hp.Blocks[blockID] = bp
	}
	return bp
}

// HasOpenSession reports whether a dwell session is currently being timed.
func (l *Ledger) HasOpenSession() bool {
	return l.CurrentBlock != "" && l.CurrentHour > 0 && !l.SessionStart.IsZero()
}

// ClearSession forgets the active session, keeping the resume hints.
func (l *Ledger) ClearSession() {
	l.SessionStart = 0
}

// HourSummary is the launch-screen view of one hour.
type HourSummary struct {
	Hour             int     `json:"hour"`
	TotalSeconds     int     `json:"total_seconds"`
	FormattedTime    string  `json:"formatted_time"`
	RemainingSeconds int     `json:"remaining_seconds"`
	Percent          float64 `json:"percent"`
	TimeComplete     bool    `json:"time_complete"`
	Completed        bool    `json:"completed"`
	BlocksVisited    int     `json:"blocks_visited"`
}
