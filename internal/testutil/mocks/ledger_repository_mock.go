package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/ceplayer/internal/models"
)

// MockLedgerRepository is a mock implementation of repository.LedgerRepository.
// Update applies fn to the ledger returned by the expectation before reporting its error.
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Load(ctx context.Context, namespace string) (*models.Ledger, error) {
	args := m.Called(ctx, namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ledger), args.Error(1)
}

func (m *MockLedgerRepository) Update(ctx context.Context, namespace string, fn func(*models.Ledger) error) (*models.Ledger, error) {
	args := m.Called(ctx, namespace, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	l := args.Get(0).(*models.Ledger)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	if err := fn(l); err != nil {
		return nil, err
	}
	return l, nil
}

func (m *MockLedgerRepository) Delete(ctx context.Context, namespace string) error {
	args := m.Called(ctx, namespace)
	return args.Error(0)
}
