package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/vytor/ceplayer/internal/errors"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/models"
	"github.com/vytor/ceplayer/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db *gorm.DB
}

func (r *ledgerRepository) Load(ctx context.Context, namespace string) (*models.Ledger, error) {
	var rec LedgerRecord
	err := r.db.WithContext(ctx).Where("namespace = ?", namespace).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewLedger(namespace, 0), nil
	}
	if err != nil {
		logger.FromContext(ctx).WithPrefix("ledger_repo").Error("failed to load ledger: %v", err)
		return nil, err
	}
	return repository.DecodeLedger(ctx, namespace, []byte(rec.Data)), nil
}

// Update locks the row on PostgreSQL; SQLite serializes through its single connection.
// The row is seeded first so that concurrent first writes for a namespace queue on the
// same lock instead of both starting from an empty ledger.
func (r *ledgerRepository) Update(ctx context.Context, namespace string, fn func(*models.Ledger) error) (*models.Ledger, error) {
	seed, err := repository.EncodeLedger(models.NewLedger(namespace, 0))
	if err != nil {
		return nil, err
	}
	var out *models.Ledger
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}},
			DoNothing: true,
		}).Create(&LedgerRecord{Namespace: namespace, Data: string(seed), UpdatedAt: time.Now()}).Error; err != nil {
			return err
		}

		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var rec LedgerRecord
		err := q.Where("namespace = ?", namespace).Take(&rec).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		l := repository.DecodeLedger(ctx, namespace, []byte(rec.Data))
		if err := fn(l); err != nil {
			return err
		}
		data, err := repository.EncodeLedger(l)
		if err != nil {
			return err
		}

		rec.Namespace = namespace
		rec.Data = string(data)
		rec.UpdatedAt = l.UpdatedAt
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = time.Now()
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&rec).Error; err != nil {
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
	return r.db.WithContext(ctx).Where("namespace = ?", namespace).Delete(&LedgerRecord{}).Error
}

type learnerRepository struct {
	db *gorm.DB
}

func toLearner(rec LearnerRecord) models.Learner {
	return models.Learner{
		ID:        rec.ID,
		Name:      rec.Name,
		License:   rec.License,
		Email:     rec.Email,
		CreatedAt: rec.CreatedAt,
	}
}

func (r *learnerRepository) Create(ctx context.Context, learner models.Learner) error {
	rec := LearnerRecord{
		ID:        learner.ID,
		Name:      learner.Name,
		License:   learner.License,
		Email:     learner.Email,
		CreatedAt: learner.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *learnerRepository) Get(ctx context.Context, id string) (*models.Learner, error) {
	var rec LearnerRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l := toLearner(rec)
	return &l, nil
}

func (r *learnerRepository) List(ctx context.Context) ([]models.Learner, error) {
	var recs []LearnerRecord
	if err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.Learner, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toLearner(rec))
	}
	return out, nil
}

func (r *learnerRepository) UpdateStudent(ctx context.Context, id string, info models.StudentInfo) error {
	res := r.db.WithContext(ctx).Model(&LearnerRecord{}).Where("id = ?", id).Updates(map[string]any{
		"name":    info.Name,
		"license": info.License,
		"email":   info.Email,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("learner %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}
