// Package repotest holds the behaviour every repository backend must share.
package repotest

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	apperrors "github.com/vytor/ceplayer/internal/errors"
	"github.com/vytor/ceplayer/internal/models"
	"github.com/vytor/ceplayer/internal/repository"
)

// StoreSuite runs against a fresh store per test. Backends embed it or pass it to
// suite.Run with NewStore set.
type StoreSuite struct {
	suite.Suite
	NewStore func(t *testing.T) repository.Store

	store repository.Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.Require().NotNil(s.NewStore, "NewStore must be set")
	s.store = s.NewStore(s.T())
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *StoreSuite) TestLoad_MissingIsEmpty() {
	l, err := s.store.Ledgers().Load(s.ctx, "ceplayer-progress/nobody")
	s.Require().NoError(err)
	s.Assert().Equal("ceplayer-progress/nobody", l.Namespace)
	s.Assert().False(l.HasOpenSession())
	for _, hp := range l.Hours {
		s.Assert().Zero(hp.TotalSecondsElapsed)
	}
}

func (s *StoreSuite) TestUpdate_Persists() {
	ns := "ceplayer-progress/a"
	start := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)

	out, err := s.store.Ledgers().Update(s.ctx, ns, func(l *models.Ledger) error {
		b := l.Block(1, "block_001")
		b.TimeSecondsAccumulated = 90
		b.TabsViewed = append(b.TabsViewed, "scenario")
		l.Hour(1).TotalSecondsElapsed = 90
		l.CurrentHour = 1
		l.CurrentBlock = "block_001"
		l.SessionStart = models.InstantOf(start)
		l.Student = models.StudentInfo{Name: "Dana", License: "CA-1234"}
		l.UpdatedAt = start
		return nil
	})
	s.Require().NoError(err)
	s.Assert().Equal(90, out.Hours[1].TotalSecondsElapsed)

	l, err := s.store.Ledgers().Load(s.ctx, ns)
	s.Require().NoError(err)
	s.Require().Contains(l.Hours, 1)
	s.Assert().Equal(90, l.Hours[1].TotalSecondsElapsed)
	s.Require().Contains(l.Hours[1].Blocks, "block_001")
	s.Assert().Equal([]string{"scenario"}, l.Hours[1].Blocks["block_001"].TabsViewed)
	s.Assert().Equal(models.BlockInProgress, l.Hours[1].Blocks["block_001"].Status)
	s.Assert().True(l.HasOpenSession())
	s.Assert().True(l.SessionStart.Time().Equal(start))
	s.Assert().Equal("Dana", l.Student.Name)
}

func (s *StoreSuite) TestUpdate_ErrorWritesNothing() {
	ns := "ceplayer-progress/b"
	_, err := s.store.Ledgers().Update(s.ctx, ns, func(l *models.Ledger) error {
		l.Hour(1).TotalSecondsElapsed = 10
		return nil
	})
	s.Require().NoError(err)

	boom := stderrors.New("boom")
	_, err = s.store.Ledgers().Update(s.ctx, ns, func(l *models.Ledger) error {
		l.Hour(1).TotalSecondsElapsed = 9999
		return boom
	})
	s.Assert().ErrorIs(err, boom)

	l, err := s.store.Ledgers().Load(s.ctx, ns)
	s.Require().NoError(err)
	s.Assert().Equal(10, l.Hours[1].TotalSecondsElapsed)
}

func (s *StoreSuite) TestNamespacesAreIsolated() {
	_, err := s.store.Ledgers().Update(s.ctx, "ceplayer-progress/x", func(l *models.Ledger) error {
		l.Hour(2).TotalSecondsElapsed = 300
		return nil
	})
	s.Require().NoError(err)

	other, err := s.store.Ledgers().Load(s.ctx, "ceplayer-progress/y")
	s.Require().NoError(err)
	if hp, ok := other.Hours[2]; ok {
		s.Assert().Zero(hp.TotalSecondsElapsed)
	}
}

func (s *StoreSuite) TestDelete() {
	ns := "ceplayer-progress/c"
	_, err := s.store.Ledgers().Update(s.ctx, ns, func(l *models.Ledger) error {
		l.Hour(1).TotalSecondsElapsed = 42
		return nil
	})
	s.Require().NoError(err)

	s.Require().NoError(s.store.Ledgers().Delete(s.ctx, ns))
	s.Require().NoError(s.store.Ledgers().Delete(s.ctx, ns), "deleting twice is fine")

	l, err := s.store.Ledgers().Load(s.ctx, ns)
	s.Require().NoError(err)
	if hp, ok := l.Hours[1]; ok {
		s.Assert().Zero(hp.TotalSecondsElapsed)
	}
}

func (s *StoreSuite) TestUpdate_ConcurrentIncrementsAreSerialized() {
	ns := "ceplayer-progress/d"
	const writers = 20

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Ledgers().Update(s.ctx, ns, func(l *models.Ledger) error {
				l.Hour(1).TotalSecondsElapsed++
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	l, err := s.store.Ledgers().Load(s.ctx, ns)
	s.Require().NoError(err)
	s.Assert().Equal(writers, l.Hours[1].TotalSecondsElapsed)
}

func (s *StoreSuite) TestLearners() {
	repo := s.store.Learners()
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	s.Require().NoError(repo.Create(s.ctx, models.Learner{ID: "l-2", Name: "Second", CreatedAt: t0.Add(time.Minute)}))
	s.Require().NoError(repo.Create(s.ctx, models.Learner{ID: "l-1", Name: "First", Email: "first@example.com", CreatedAt: t0}))

	got, err := repo.Get(s.ctx, "l-1")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Assert().Equal("First", got.Name)
	s.Assert().Equal("first@example.com", got.Email)
	s.Assert().WithinDuration(t0, got.CreatedAt, time.Second)

	missing, err := repo.Get(s.ctx, "nope")
	s.Require().NoError(err)
	s.Assert().Nil(missing)

	list, err := repo.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Assert().Equal("l-1", list[0].ID, "oldest first")
	s.Assert().Equal("l-2", list[1].ID)

	s.Require().NoError(repo.UpdateStudent(s.ctx, "l-2", models.StudentInfo{Name: "Renamed", License: "NV-77", Email: "r@example.com"}))
	got, err = repo.Get(s.ctx, "l-2")
	s.Require().NoError(err)
	s.Assert().Equal("Renamed", got.Name)
	s.Assert().Equal("NV-77", got.License)

	err = repo.UpdateStudent(s.ctx, "ghost", models.StudentInfo{Name: "x"})
	s.Assert().ErrorIs(err, apperrors.ErrNotFound)
}
