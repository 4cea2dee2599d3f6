package player

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/vytor/ceplayer/internal/content"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/metrics"
	"github.com/vytor/ceplayer/internal/models"
	"github.com/vytor/ceplayer/internal/repository"
	"github.com/vytor/ceplayer/internal/scheduler"
	"github.com/vytor/ceplayer/internal/services"
)

// SnapshotEvent is the SSE event name snapshots are published under.
const SnapshotEvent = "snapshot"

// Publisher delivers an event to the subscribers of a topic.
type Publisher interface {
	Publish(topic, event string, data any)
}

type published struct {
	topic string
	snap  Snapshot
}

// Registry owns one Player per learner, created on first use.
type Registry struct {
	sched     scheduler.Scheduler
	source    *content.Source
	ledgers   repository.LedgerRepository
	clock     clockwork.Clock
	metrics   *metrics.Recorder
	cfg       Config
	hourCount int
	namespace string
	publisher Publisher
	log       *logger.Logger

	mu      sync.Mutex
	players map[string]*Player

	events chan published
}

// RegistryConfig gathers a Registry's collaborators.
type RegistryConfig struct {
	Scheduler scheduler.Scheduler
	Source    *content.Source
	Ledgers   repository.LedgerRepository
	Clock     clockwork.Clock
	Metrics   *metrics.Recorder
	Player    Config
	Publisher Publisher
	// Namespace prefixes every learner's ledger key; empty means models.DefaultNamespace.
	Namespace string
	// QueueSize bounds snapshots waiting to be published; extra snapshots are dropped.
	QueueSize int
}

func NewRegistry(rc RegistryConfig) *Registry {
	if rc.Metrics == nil {
		rc.Metrics = metrics.Noop()
	}
	if rc.QueueSize <= 0 {
		rc.QueueSize = 256
	}
	if rc.Namespace == "" {
		rc.Namespace = models.DefaultNamespace
	}
	if rc.Clock == nil {
		rc.Clock = clockwork.NewRealClock()
	}
	return &Registry{
		sched:     rc.Scheduler,
		source:    rc.Source,
		ledgers:   rc.Ledgers,
		clock:     rc.Clock,
		metrics:   rc.Metrics,
		cfg:       rc.Player.withDefaults(),
		hourCount: rc.Source.Outline().HourCount(),
		namespace: rc.Namespace,
		publisher: rc.Publisher,
		log:       logger.Default().WithPrefix("player-registry"),
		players:   make(map[string]*Player),
		events:    make(chan published, rc.QueueSize),
	}
}

// Progress returns the progress service bound to the learner's namespace.
func (r *Registry) Progress(learnerID string) services.ProgressService {
	return services.NewProgressService(r.ledgers, r.namespace+"/"+learnerID, services.ProgressConfig{
		HourCount:      r.hourCount,
		MinimumSeconds: r.cfg.MinimumSeconds,
		Clock:          r.clock,
		Metrics:        r.metrics,
	})
}

// Get returns the learner's player, creating it on first use. Either way the learner
// counts as present.
func (r *Registry) Get(ctx context.Context, learnerID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[learnerID]; ok {
		p.Touch(ctx)
		return p
	}
	// The player outlives the request that created it.
	base := logger.NewContext(context.WithoutCancel(ctx), logger.Default())
	p := New(base, learnerID, r.sched, r.source, r.Progress(learnerID), r.metrics, r.cfg)
	if r.publisher != nil {
		p.OnSnapshot(func(s Snapshot) { r.enqueue(learnerID, s) })
	}
	r.players[learnerID] = p
	r.log.Debug("created player for %s (%d active)", learnerID, len(r.players))
	return p
}

// Lookup returns the learner's player without creating one.
func (r *Registry) Lookup(learnerID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[learnerID]
	return p, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// enqueue runs on the scheduler loop and must not block it.
func (r *Registry) enqueue(learnerID string, s Snapshot) {
	select {
	case r.events <- published{topic: learnerID, snap: s}:
	default:
		r.log.Debug("publish queue full, dropping snapshot for %s", learnerID)
	}
}

// Run publishes queued snapshots and evicts idle players until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.cfg.IdleTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.events:
			if r.publisher != nil {
				r.publisher.Publish(ev.topic, SnapshotEvent, ev.snap)
			}
		case <-ticker.Chan():
			r.Sweep(ctx)
		}
	}
}

// Sweep closes and forgets every player whose learner has been away longer than the idle
// limit, and returns how many it evicted.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	var idle []*Player
	for id, p := range r.players {
		if p.Idle() {
			idle = append(idle, p)
			delete(r.players, id)
		}
	}
	active := len(r.players)
	r.mu.Unlock()

	for _, p := range idle {
		if err := p.Close(ctx); err != nil {
			r.log.Error("failed to close idle player for %s: %v", p.LearnerID(), err)
		}
	}
	if len(idle) > 0 {
		r.log.Info("evicted %d idle players (%d active)", len(idle), active)
	}
	return len(idle)
}

// Remove closes and forgets the learner's player.
func (r *Registry) Remove(ctx context.Context, learnerID string) error {
	r.mu.Lock()
	p, ok := r.players[learnerID]
	delete(r.players, learnerID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return p.Close(ctx)
}

// CloseAll closes every player, crediting each open session.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	r.players = make(map[string]*Player)
	r.mu.Unlock()

	for _, p := range players {
		if err := p.Close(ctx); err != nil {
			r.log.Error("failed to close player for %s: %v", p.LearnerID(), err)
		}
	}
	r.log.Info("closed %d players", len(players))
}
