package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/ceplayer/internal/models"
)

// MockLearnerRepository is a mock implementation of repository.LearnerRepository
type MockLearnerRepository struct {
	mock.Mock
}

func (m *MockLearnerRepository) Create(ctx context.Context, learner models.Learner) error {
	args := m.Called(ctx, learner)
	return args.Error(0)
}

func (m *MockLearnerRepository) Get(ctx context.Context, id string) (*models.Learner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Learner), args.Error(1)
}

func (m *MockLearnerRepository) List(ctx context.Context) ([]models.Learner, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Learner), args.Error(1)
}

func (m *MockLearnerRepository) UpdateStudent(ctx context.Context, id string, info models.StudentInfo) error {
	args := m.Called(ctx, id, info)
	return args.Error(0)
}
