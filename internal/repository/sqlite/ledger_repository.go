package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/models"
	"github.com/vytor/ceplayer/internal/repository"
)

type ledgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates a new LedgerRepository implementation
func NewLedgerRepository(db *sql.DB) repository.LedgerRepository {
	return &ledgerRepository{db: db}
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *ledgerRepository) read(ctx context.Context, q queryRower, namespace string) (*models.Ledger, error) {
	query, args, err := sqlBuilder.
		Select("data").
		From("ledgers").
		Where(squirrel.Eq{"namespace": namespace}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var data string
	err = q.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewLedger(namespace, 0), nil
	}
	if err != nil {
		return nil, err
	}
	return repository.DecodeLedger(ctx, namespace, []byte(data)), nil
}

func (r *ledgerRepository) Load(ctx context.Context, namespace string) (*models.Ledger, error) {
	log := logger.FromContext(ctx).WithPrefix("ledger_repo")
	log.Debug("loading ledger: namespace=%s", namespace)

	l, err := r.read(ctx, r.db, namespace)
	if err != nil {
		log.Error("failed to load ledger: %v", err)
		return nil, err
	}
	return l, nil
}

func (r *ledgerRepository) Update(ctx context.Context, namespace string, fn func(*models.Ledger) error) (*models.Ledger, error) {
	log := logger.FromContext(ctx).WithPrefix("ledger_repo")
	log.Debug("updating ledger: namespace=%s", namespace)

	var out *models.Ledger
	err := tx(ctx, r.db, func(tx *sql.Tx) error {
		l, err := r.read(ctx, tx, namespace)
		if err != nil {
			log.Error("failed to read ledger for update: %v", err)
			return err
		}
		if err := fn(l); err != nil {
			return err
		}

		data, err := repository.EncodeLedger(l)
		if err != nil {
			return err
		}
		updatedAt := l.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now()
		}

		query, args, err := sqlBuilder.
			Insert("ledgers").
			Columns("namespace", "data", "updated_at").
			Values(namespace, string(data), updatedAt).
			Suffix("ON CONFLICT(namespace) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at").
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			log.Error("failed to write ledger: %v", err)
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ledgerRepository) Delete(ctx context.Context, namespace string) error {
	log := logger.FromContext(ctx).WithPrefix("ledger_repo")
	log.Debug("deleting ledger: namespace=%s", namespace)

	query, args, err := sqlBuilder.Delete("ledgers").Where(squirrel.Eq{"namespace": namespace}).ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to delete ledger: %v", err)
		return err
	}
	return nil
}
