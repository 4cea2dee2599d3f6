package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vytor/ceplayer/internal/errors"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/metrics"
	"github.com/vytor/ceplayer/internal/models"
	"github.com/vytor/ceplayer/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vytor/ceplayer/internal/services"

// ProgressService accumulates dwell time per block and hour for one ledger namespace.
// Every mutation is persisted before the call returns.
type ProgressService interface {
	Namespace() string
	Ledger(ctx context.Context) (*models.Ledger, error)

	OpenSession(ctx context.Context, hour int, blockID string) error
	CloseSession(ctx context.Context) (int, error)
	CloseSessionAt(ctx context.Context, until time.Time) (int, error)
	DiscardSession(ctx context.Context) (bool, error)
	Transition(ctx context.Context, hour int, blockID string) (int, error)

	MarkTabViewed(ctx context.Context, hour int, blockID, tab string) error
	CompleteBlock(ctx context.Context, hour int, blockID string) error
	IsHourComplete(ctx context.Context, hour int) (bool, error)
	CompleteHour(ctx context.Context, hour int) (bool, error)
	Reset(ctx context.Context) error
	SetStudentInfo(ctx context.Context, info models.StudentInfo) error

	FormattedTimeForHour(ctx context.Context, hour int) (string, error)
	RemainingTimeForHour(ctx context.Context, hour int) (int, error)
	LiveSecondsForHour(ctx context.Context, hour int) (int, error)
	HourSummaries(ctx context.Context) ([]models.HourSummary, error)
	ResumeHour(ctx context.Context) (int, error)
}

// ProgressConfig tunes a ProgressService. Zero values take the package defaults.
type ProgressConfig struct {
	HourCount      int
	MinimumSeconds int
	Clock          clockwork.Clock
	Metrics        *metrics.Recorder
}

type progressService struct {
	ledgers   repository.LedgerRepository
	namespace string
	hourCount int
	minimum   int
	clock     clockwork.Clock
	metrics   *metrics.Recorder
	tracer    trace.Tracer
}

// NewProgressService creates a ProgressService bound to namespace.
func NewProgressService(ledgers repository.LedgerRepository, namespace string, cfg ProgressConfig) ProgressService {
	if namespace == "" {
		namespace = models.DefaultNamespace
	}
	if cfg.HourCount <= 0 {
		cfg.HourCount = 4
	}
	if cfg.MinimumSeconds <= 0 {
		cfg.MinimumSeconds = models.MinimumSecondsPerHour
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop()
	}
	return &progressService{
		ledgers:   ledgers,
		namespace: namespace,
		hourCount: cfg.HourCount,
		minimum:   cfg.MinimumSeconds,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		tracer:    otel.Tracer(tracerName),
	}
}

func (s *progressService) Namespace() string { return s.namespace }

func (s *progressService) checkHour(hour int) error {
	if hour < 1 || hour > s.hourCount {
		return errors.NewValidationError("hour", fmt.Sprintf("must be between 1 and %d", s.hourCount))
	}
	return nil
}

func (s *progressService) load(ctx context.Context) (*models.Ledger, error) {
	l, err := s.ledgers.Load(ctx, s.namespace)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load ledger %s: %v", s.namespace, err)
		return nil, errors.NewInternalError(err)
	}
	l.Normalize(s.hourCount)
	return l, nil
}

// update runs fn inside one repository transaction under a span named op.
// Domain errors returned by fn pass through unchanged.
func (s *progressService) update(ctx context.Context, op string, fn func(l *models.Ledger, now time.Time) error) (*models.Ledger, error) {
	ctx, span := s.tracer.Start(ctx, "progress."+op, trace.WithAttributes(
		attribute.String("ledger.namespace", s.namespace),
	))
	defer span.End()

	now := s.clock.Now()
	var appErr error
	l, err := s.ledgers.Update(ctx, s.namespace, func(l *models.Ledger) error {
		l.Normalize(s.hourCount)
		if err := fn(l, now); err != nil {
			appErr = err
			return err
		}
		l.UpdatedAt = now
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op)
		if appErr != nil {
			return nil, appErr
		}
		logger.FromContext(ctx).Error("failed to %s ledger %s: %v", op, s.namespace, err)
		return nil, errors.NewInternalError(err)
	}
	return l, nil
}

func (s *progressService) Ledger(ctx context.Context) (*models.Ledger, error) {
	return s.load(ctx)
}

func (s *progressService) OpenSession(ctx context.Context, hour int, blockID string) error {
	log := logger.FromContext(ctx)
	log.Debug("opening session: hour=%d block=%s", hour, blockID)

	if err := s.checkHour(hour); err != nil {
		return err
	}
	if blockID == "" {
		return errors.NewValidationError("block", "cannot be empty")
	}
	_, err := s.update(ctx, "open_session", func(l *models.Ledger, now time.Time) error {
		if l.HasOpenSession() {
			if l.CurrentHour == hour && l.CurrentBlock == blockID {
				return nil
			}
			return fmt.Errorf("open hour %d block %s: %w", l.CurrentHour, l.CurrentBlock, errors.ErrSessionOpen)
		}
		openSession(l, hour, blockID, now)
		return nil
	})
	return err
}

func (s *progressService) CloseSession(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)
	log.Debug("closing session")

	var credited int
	_, err := s.update(ctx, "close_session", func(l *models.Ledger, now time.Time) error {
		credited = s.closeSession(ctx, l, now)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return credited, nil
}

// CloseSessionAt closes the open session as if it ended at until, so time after the
// learner was last seen is never credited. An until later than now is treated as now and
// one before the session start credits nothing.
func (s *progressService) CloseSessionAt(ctx context.Context, until time.Time) (int, error) {
	log := logger.FromContext(ctx)
	log.Debug("closing session at %s", until.Format(time.RFC3339))

	var credited int
	_, err := s.update(ctx, "close_session_at", func(l *models.Ledger, now time.Time) error {
		end := until
		if end.After(now) {
			end = now
		}
		if l.HasOpenSession() {
			if start := l.SessionStart.Time(); end.Before(start) && !start.After(now) {
				end = start
			}
		}
		credited = s.closeSession(ctx, l, end)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return credited, nil
}

// DiscardSession forgets an open session without crediting it. A player calls it when it
// takes over a ledger whose session was left open by a process that stopped without
// closing it, so unobserved time is never credited. It reports whether a session was open.
func (s *progressService) DiscardSession(ctx context.Context) (bool, error) {
	log := logger.FromContext(ctx)

	var discarded bool
	_, err := s.update(ctx, "discard_session", func(l *models.Ledger, _ time.Time) error {
		if l.HasOpenSession() {
			discarded = true
			log.Warn("discarding unclosed session hour=%d block=%s started %s",
				l.CurrentHour, l.CurrentBlock, l.SessionStart.Time().Format(time.RFC3339))
		}
		l.ClearSession()
		return nil
	})
	if err != nil {
		return false, err
	}
	return discarded, nil
}

// Transition closes whatever session is open and opens hour/blockID against the same
// instant, in a single write.
func (s *progressService) Transition(ctx context.Context, hour int, blockID string) (int, error) {
	log := logger.FromContext(ctx)
	log.Debug("transition: hour=%d block=%s", hour, blockID)

	if err := s.checkHour(hour); err != nil {
		return 0, err
	}
	if blockID == "" {
		return 0, errors.NewValidationError("block", "cannot be empty")
	}
	var credited int
	_, err := s.update(ctx, "transition", func(l *models.Ledger, now time.Time) error {
		credited = s.closeSession(ctx, l, now)
		openSession(l, hour, blockID, now)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return credited, nil
}

func openSession(l *models.Ledger, hour int, blockID string, now time.Time) {
	hp := l.Hour(hour)
	bp := l.Block(hour, blockID)
	if hp.StartedAt == nil {
		t := now
		hp.StartedAt = &t
	}
	if bp.StartedAt == nil {
		t := now
		bp.StartedAt = &t
	}
	l.CurrentHour = hour
	l.CurrentBlock = blockID
	l.SessionStart = models.InstantOf(now)
}

// closeSession credits the open session to its block and hour and returns the seconds
// credited. A missing or unusable start credits nothing.
func (s *progressService) closeSession(ctx context.Context, l *models.Ledger, now time.Time) int {
	if !l.HasOpenSession() {
		// Resume hints without a running session, or a start that failed to decode.
		l.ClearSession()
		return 0
	}
	hour, blockID := l.CurrentHour, l.CurrentBlock
	usable := !l.SessionStart.Time().After(now)
	if !usable {
		logger.FromContext(ctx).WithPrefix("progress").
			Warn("session start for hour %d block %s is in the future, crediting 0s", hour, blockID)
	}
	delta := l.SessionStart.SecondsUntil(now)

	l.Block(hour, blockID).TimeSecondsAccumulated += delta
	l.Hour(hour).TotalSecondsElapsed += delta
	l.ClearSession()

	s.metrics.SessionClosed(ctx, hour, delta, usable)
	return delta
}

func (s *progressService) MarkTabViewed(ctx context.Context, hour int, blockID, tab string) error {
	log := logger.FromContext(ctx)
	log.Debug("marking tab viewed: hour=%d block=%s tab=%s", hour, blockID, tab)

	if err := s.checkHour(hour); err != nil {
		return err
	}
	if blockID == "" || tab == "" {
		return errors.NewValidationError("tab", "block and tab are required")
	}
	_, err := s.update(ctx, "mark_tab", func(l *models.Ledger, _ time.Time) error {
		bp := l.Block(hour, blockID)
		if !bp.HasTab(tab) {
			bp.TabsViewed = append(bp.TabsViewed, tab)
		}
		return nil
	})
	return err
}

func (s *progressService) CompleteBlock(ctx context.Context, hour int, blockID string) error {
	log := logger.FromContext(ctx)
	log.Debug("completing block: hour=%d block=%s", hour, blockID)

	if err := s.checkHour(hour); err != nil {
		return err
	}
	if blockID == "" {
		return errors.NewValidationError("block", "cannot be empty")
	}
	_, err := s.update(ctx, "complete_block", func(l *models.Ledger, now time.Time) error {
		bp := l.Block(hour, blockID)
		bp.Status = models.BlockComplete
		if bp.CompletedAt == nil {
			t := now
			bp.CompletedAt = &t
		}
		return nil
	})
	return err
}

func (s *progressService) IsHourComplete(ctx context.Context, hour int) (bool, error) {
	if err := s.checkHour(hour); err != nil {
		return false, err
	}
	l, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	return l.Hour(hour).TotalSecondsElapsed >= s.minimum, nil
}

// CompleteHour marks the hour complete when its total has reached the minimum. Below the
// minimum it returns false and leaves the ledger untouched.
func (s *progressService) CompleteHour(ctx context.Context, hour int) (bool, error) {
	log := logger.FromContext(ctx)

	if err := s.checkHour(hour); err != nil {
		return false, err
	}
	_, err := s.update(ctx, "complete_hour", func(l *models.Ledger, now time.Time) error {
		hp := l.Hour(hour)
		if hp.TotalSecondsElapsed < s.minimum {
			return fmt.Errorf("hour %d has %ds of %ds: %w", hour, hp.TotalSecondsElapsed, s.minimum, errors.ErrHourIncomplete)
		}
		if !hp.Completed {
			hp.Completed = true
			t := now
			hp.CompletedAt = &t
		}
		return nil
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrHourIncomplete) {
			log.Warn("hour %d cannot be completed: minimum time not met", hour)
			s.metrics.HourCompletionRefused(ctx, hour)
			return false, nil
		}
		return false, err
	}
	log.Info("hour %d completed", hour)
	s.metrics.HourCompleted(ctx, hour)
	return true, nil
}

func (s *progressService) Reset(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Warn("resetting all progress for %s", s.namespace)

	_, err := s.update(ctx, "reset", func(l *models.Ledger, _ time.Time) error {
		student := l.Student
		*l = *models.NewLedger(s.namespace, s.hourCount)
		l.Student = student
		return nil
	})
	return err
}

func (s *progressService) SetStudentInfo(ctx context.Context, info models.StudentInfo) error {
	logger.FromContext(ctx).Debug("setting student info: name=%s", info.Name)

	_, err := s.update(ctx, "set_student", func(l *models.Ledger, _ time.Time) error {
		l.Student = info
		return nil
	})
	return err
}

func (s *progressService) FormattedTimeForHour(ctx context.Context, hour int) (string, error) {
	if err := s.checkHour(hour); err != nil {
		return "", err
	}
	l, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	return models.FormatClock(l.Hour(hour).TotalSecondsElapsed), nil
}

func (s *progressService) RemainingTimeForHour(ctx context.Context, hour int) (int, error) {
	if err := s.checkHour(hour); err != nil {
		return 0, err
	}
	l, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return max(0, s.minimum-l.Hour(hour).TotalSecondsElapsed), nil
}

// LiveSecondsForHour is the stored total plus the running session when it belongs to hour.
func (s *progressService) LiveSecondsForHour(ctx context.Context, hour int) (int, error) {
	if err := s.checkHour(hour); err != nil {
		return 0, err
	}
	l, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	total := l.Hour(hour).TotalSecondsElapsed
	if l.HasOpenSession() && l.CurrentHour == hour {
		total += l.SessionStart.SecondsUntil(s.clock.Now())
	}
	return total, nil
}

func (s *progressService) HourSummaries(ctx context.Context) ([]models.HourSummary, error) {
	l, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.HourSummary, 0, s.hourCount)
	for h := 1; h <= s.hourCount; h++ {
		hp := l.Hour(h)
		pct := float64(hp.TotalSecondsElapsed) / float64(s.minimum) * 100
		out = append(out, models.HourSummary{
			Hour:             h,
			TotalSeconds:     hp.TotalSecondsElapsed,
			FormattedTime:    models.FormatClock(hp.TotalSecondsElapsed),
			RemainingSeconds: max(0, s.minimum-hp.TotalSecondsElapsed),
			Percent:          min(100, pct),
			TimeComplete:     hp.TotalSecondsElapsed >= s.minimum,
			Completed:        hp.Completed,
			BlocksVisited:    len(hp.Blocks),
		})
	}
	return out, nil
}

// ResumeHour returns the first hour not yet completed, or 1 when every hour is done.
func (s *progressService) ResumeHour(ctx context.Context) (int, error) {
	l, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	for h := 1; h <= s.hourCount; h++ {
		if !l.Hour(h).Completed {
			return h, nil
		}
	}
	return 1, nil
}
