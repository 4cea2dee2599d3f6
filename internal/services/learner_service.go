package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/vytor/ceplayer/internal/errors"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/models"
	"github.com/vytor/ceplayer/internal/repository"
)

// LearnerService handles learner registration and lookup
type LearnerService interface {
	ListLearners(ctx context.Context) ([]models.Learner, error)
	CreateLearner(ctx context.Context, info models.StudentInfo) (*models.Learner, error)
	GetLearner(ctx context.Context, id string) (*models.Learner, error)
	UpdateStudent(ctx context.Context, id string, info models.StudentInfo) error
}

type learnerService struct {
	learnerRepo repository.LearnerRepository
	clock       clockwork.Clock
}

// NewLearnerService creates a new LearnerService
func NewLearnerService(learnerRepo repository.LearnerRepository, clock clockwork.Clock) LearnerService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &learnerService{learnerRepo: learnerRepo, clock: clock}
}

func (s *learnerService) ListLearners(ctx context.Context) ([]models.Learner, error) {
	log := logger.FromContext(ctx)
	log.Debug("listing learners")

	learners, err := s.learnerRepo.List(ctx)
	if err != nil {
		log.Error("failed to list learners: %v", err)
		return nil, errors.NewInternalError(err)
	}
	return learners, nil
}

func normalizeStudent(info models.StudentInfo) models.StudentInfo {
	return models.StudentInfo{
		Name:    strings.TrimSpace(info.Name),
		License: strings.TrimSpace(info.License),
		Email:   strings.TrimSpace(info.Email),
	}
}

func (s *learnerService) CreateLearner(ctx context.Context, info models.StudentInfo) (*models.Learner, error) {
	log := logger.FromContext(ctx)
	info = normalizeStudent(info)
	log.Debug("creating learner: name=%s", info.Name)

	if info.Name == "" {
		return nil, errors.NewValidationError("name", "cannot be empty")
	}
	if info.Email != "" && !strings.Contains(info.Email, "@") {
		return nil, errors.NewValidationError("email", "must be an email address")
	}

	learner := models.Learner{
		ID:        uuid.NewString(),
		Name:      info.Name,
		License:   info.License,
		Email:     info.Email,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.learnerRepo.Create(ctx, learner); err != nil {
		log.Error("failed to create learner: %v", err)
		return nil, errors.NewInternalError(err)
	}
	log.Info("learner created: id=%s", learner.ID)
	return &learner, nil
}

func (s *learnerService) GetLearner(ctx context.Context, id string) (*models.Learner, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting learner: id=%s", id)

	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NewNotFoundError("learner", id)
	}
	learner, err := s.learnerRepo.Get(ctx, id)
	if err != nil {
		log.Error("failed to get learner: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if learner == nil {
		return nil, errors.NewNotFoundError("learner", id)
	}
	return learner, nil
}

func (s *learnerService) UpdateStudent(ctx context.Context, id string, info models.StudentInfo) error {
	log := logger.FromContext(ctx)
	info = normalizeStudent(info)
	log.Debug("updating learner: id=%s", id)

	if info.Name == "" {
		return errors.NewValidationError("name", "cannot be empty")
	}
	if err := s.learnerRepo.UpdateStudent(ctx, id, info); err != nil {
		if errors.FromDomain(err).Code == errors.ErrCodeNotFound {
			return errors.NewNotFoundError("learner", id)
		}
		log.Error("failed to update learner: %v", err)
		return errors.NewInternalError(err)
	}
	return nil
}
