// Package memory keeps ledgers and learners in process memory. Nothing survives a restart;
// it backs tests and throwaway demo runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/vytor/ceplayer/internal/errors"
	"github.com/vytor/ceplayer/internal/models"
	"github.com/vytor/ceplayer/internal/repository"
)

type Store struct {
	mu       sync.Mutex
	ledgers  map[string][]byte
	learners map[string]models.Learner
}

func NewStore() *Store {
	return &Store{
		ledgers:  make(map[string][]byte),
		learners: make(map[string]models.Learner),
	}
}

func (s *Store) Ledgers() repository.LedgerRepository   { return ledgerRepo{s} }
func (s *Store) Learners() repository.LearnerRepository { return learnerRepo{s} }
func (s *Store) Close() error                           { return nil }

type ledgerRepo struct{ s *Store }

func (r ledgerRepo) Load(ctx context.Context, namespace string) (*models.Ledger, error) {
	r.s.mu.Lock()
	data := r.s.ledgers[namespace]
	r.s.mu.Unlock()
	return repository.DecodeLedger(ctx, namespace, data), nil
}

// Update stores the encoded form so callers never share pointers with the store.
func (r ledgerRepo) Update(ctx context.Context, namespace string, fn func(*models.Ledger) error) (*models.Ledger, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l := repository.DecodeLedger(ctx, namespace, r.s.ledgers[namespace])
	if err := fn(l); err != nil {
		return nil, err
	}
	data, err := repository.EncodeLedger(l)
	if err != nil {
		return nil, err
	}
	r.s.ledgers[namespace] = data
	return l, nil
}

func (r ledgerRepo) Delete(_ context.Context, namespace string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.ledgers, namespace)
	return nil
}

type learnerRepo struct{ s *Store }

func (r learnerRepo) Create(_ context.Context, learner models.Learner) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.learners[learner.ID]; exists {
		return fmt.Errorf("learner %s already exists", learner.ID)
	}
	r.s.learners[learner.ID] = learner
	return nil
}

func (r learnerRepo) Get(_ context.Context, id string) (*models.Learner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.learners[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r learnerRepo) List(_ context.Context) ([]models.Learner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Learner, 0, len(r.s.learners))
	for _, l := range r.s.learners {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r learnerRepo) UpdateStudent(_ context.Context, id string, info models.StudentInfo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.learners[id]
	if !ok {
		return fmt.Errorf("learner %s: %w", id, apperrors.ErrNotFound)
	}
	l.Name, l.License, l.Email = info.Name, info.License, info.Email
	r.s.learners[id] = l
	return nil
}
