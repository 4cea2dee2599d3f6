package services_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apperrors "github.com/vytor/ceplayer/internal/errors"
	"github.com/vytor/ceplayer/internal/models"
	"github.com/vytor/ceplayer/internal/services"
	"github.com/vytor/ceplayer/internal/testutil/mocks"
)

func TestLearnerService_Create(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	repo := new(mocks.MockLearnerRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(l models.Learner) bool {
		_, err := uuid.Parse(l.ID)
		return err == nil && l.Name == "Ada Lovelace" && l.License == "TX-42"
	})).Return(nil)

	svc := services.NewLearnerService(repo, clock)
	learner, err := svc.CreateLearner(ctx, models.StudentInfo{Name: "  Ada Lovelace ", License: "TX-42", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", learner.Name)
	assert.Equal(t, clock.Now(), learner.CreatedAt)
	assert.Equal(t, models.DefaultNamespace+"/"+learner.ID, learner.Namespace())
	repo.AssertExpectations(t)
}

func TestLearnerService_CreateValidates(t *testing.T) {
	tests := []struct {
		name  string
		info  models.StudentInfo
		field string
	}{
		{"empty name", models.StudentInfo{Name: "   "}, "name"},
		{"bad email", models.StudentInfo{Name: "Ada", Email: "nope"}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.MockLearnerRepository)
			svc := services.NewLearnerService(repo, nil)

			_, err := svc.CreateLearner(context.Background(), tt.info)
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.ErrCodeValidation, appErr.Code)
			assert.Contains(t, appErr.Message, tt.field)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestLearnerService_Get(t *testing.T) {
	ctx := context.Background()
	id := uuid.NewString()
	missing := uuid.NewString()
	repo := new(mocks.MockLearnerRepository)
	repo.On("Get", mock.Anything, id).Return(&models.Learner{ID: id, Name: "Ada"}, nil)
	repo.On("Get", mock.Anything, missing).Return(nil, nil)

	svc := services.NewLearnerService(repo, nil)

	learner, err := svc.GetLearner(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", learner.Name)

	_, err = svc.GetLearner(ctx, missing)
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))

	_, err = svc.GetLearner(ctx, "../../etc")
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))
	repo.AssertNumberOfCalls(t, "Get", 2)
}

func TestLearnerService_UpdateStudent(t *testing.T) {
	ctx := context.Background()
	id := uuid.NewString()
	repo := new(mocks.MockLearnerRepository)
	repo.On("UpdateStudent", mock.Anything, id, models.StudentInfo{Name: "Ada"}).Return(nil)
	repo.On("UpdateStudent", mock.Anything, "gone", mock.Anything).
		Return(fmt.Errorf("learner gone: %w", apperrors.ErrNotFound))
	repo.On("UpdateStudent", mock.Anything, "broken", mock.Anything).Return(stderrors.New("db locked"))

	svc := services.NewLearnerService(repo, nil)
	require.NoError(t, svc.UpdateStudent(ctx, id, models.StudentInfo{Name: " Ada "}))

	var appErr *apperrors.AppError
	require.ErrorAs(t, svc.UpdateStudent(ctx, "gone", models.StudentInfo{Name: "X"}), &appErr)
	assert.Equal(t, apperrors.ErrCodeNotFound, appErr.Code)

	require.ErrorAs(t, svc.UpdateStudent(ctx, "broken", models.StudentInfo{Name: "X"}), &appErr)
	assert.Equal(t, apperrors.ErrCodeInternal, appErr.Code)
}

func TestLearnerService_ListError(t *testing.T) {
	repo := new(mocks.MockLearnerRepository)
	repo.On("List", mock.Anything).Return(nil, stderrors.New("boom"))

	_, err := services.NewLearnerService(repo, nil).ListLearners(context.Background())
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeInternal, appErr.Code)
}
