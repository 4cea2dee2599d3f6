package repository

import (
	"context"

	"github.com/vytor/ceplayer/internal/models"
)

// LedgerRepository persists one progress ledger per namespace.
type LedgerRepository interface {
	// Load returns the stored ledger, or an empty one when nothing is stored yet.
	Load(ctx context.Context, namespace string) (*models.Ledger, error)
	// Update reads the ledger, applies fn and writes the result as one atomic step.
	// When fn returns an error nothing is written and the error is returned unchanged.
	Update(ctx context.Context, namespace string, fn func(*models.Ledger) error) (*models.Ledger, error)
	// Delete removes the stored ledger. Deleting a missing ledger is not an error.
	Delete(ctx context.Context, namespace string) error
}

// LearnerRepository handles learner data access
type LearnerRepository interface {
	Create(ctx context.Context, learner models.Learner) error
	// Get returns nil, nil when the learner does not exist.
	Get(ctx context.Context, id string) (*models.Learner, error)
	List(ctx context.Context) ([]models.Learner, error)
	UpdateStudent(ctx context.Context, id string, info models.StudentInfo) error
}

// Store bundles the repositories one backend provides.
type Store interface {
	Ledgers() LedgerRepository
	Learners() LearnerRepository
	Close() error
}
