package sqlite

import (
	"database/sql"

	"github.com/vytor/ceplayer/internal/repository"
)

type store struct {
	db       *sql.DB
	ledgers  repository.LedgerRepository
	learners repository.LearnerRepository
}

// NewStore wraps a migrated database. Closing the store closes db.
func NewStore(db *sql.DB) repository.Store {
	return &store{
		db:       db,
		ledgers:  NewLedgerRepository(db),
		learners: NewLearnerRepository(db),
	}
}

func (s *store) Ledgers() repository.LedgerRepository   { return s.ledgers }
func (s *store) Learners() repository.LearnerRepository { return s.learners }
func (s *store) Close() error                           { return s.db.Close() }
