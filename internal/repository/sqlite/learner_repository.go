package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	apperrors "github.com/vytor/ceplayer/internal/errors"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/models"
	"github.com/vytor/ceplayer/internal/repository"
)

type learnerRepository struct {
	db *sql.DB
}

// NewLearnerRepository creates a new LearnerRepository implementation
func NewLearnerRepository(db *sql.DB) repository.LearnerRepository {
	return &learnerRepository{db: db}
}

var learnerColumns = []string{"id", "name", "license", "email", "created_at"}

func (r *learnerRepository) Create(ctx context.Context, learner models.Learner) error {
	log := logger.FromContext(ctx).WithPrefix("learner_repo")
	log.Debug("creating learner: id=%s", learner.ID)

	query, args, err := sqlBuilder.
		Insert("learners").
		Columns(learnerColumns...).
		Values(learner.ID, learner.Name, learner.License, learner.Email, learner.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to create learner: %v", err)
		return err
	}
	return nil
}

func (r *learnerRepository) Get(ctx context.Context, id string) (*models.Learner, error) {
	log := logger.FromContext(ctx).WithPrefix("learner_repo")
	log.Debug("getting learner: id=%s", id)

	query, args, err := sqlBuilder.
		Select(learnerColumns...).
		From("learners").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var l models.Learner
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&l.ID, &l.Name, &l.License, &l.Email, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("learner not found: id=%s", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get learner: %v", err)
		return nil, err
	}
	return &l, nil
}

func (r *learnerRepository) List(ctx context.Context) ([]models.Learner, error) {
	log := logger.FromContext(ctx).WithPrefix("learner_repo")
	log.Debug("listing learners")

	query, args, err := sqlBuilder.
		Select(learnerColumns...).
		From("learners").
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list learners: %v", err)
		return nil, err
	}
	defer rows.Close()

	var learners []models.Learner
	for rows.Next() {
		var l models.Learner
		if err := rows.Scan(&l.ID, &l.Name, &l.License, &l.Email, &l.CreatedAt); err != nil {
			log.Error("failed to scan learner row: %v", err)
			return nil, err
		}
		learners = append(learners, l)
	}

	log.Debug("found %d learners", len(learners))
	return learners, rows.Err()
}

func (r *learnerRepository) UpdateStudent(ctx context.Context, id string, info models.StudentInfo) error {
	log := logger.FromContext(ctx).WithPrefix("learner_repo")
	log.Debug("updating learner student info: id=%s", id)

	query, args, err := sqlBuilder.
		Update("learners").
		SetMap(map[string]any{"name": info.Name, "license": info.License, "email": info.Email}).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update learner: %v", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("learner %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}
