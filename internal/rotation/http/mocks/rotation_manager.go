// Package mocks provides mock implementations for testing the rotation handlers.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	rotationDomain "github.com/allisson/dominion/internal/rotation/domain"
)

// MockRotationManager is a mock implementation of RotationManager for testing.
type MockRotationManager struct {
	mock.Mock
}

// Rotate mocks the Rotate method of RotationManager.
func (m *MockRotationManager) Rotate(
	ctx context.Context,
	input *rotationDomain.RotateInput,
) (*rotationDomain.Result, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.Result), args.Error(1)
}

// Run mocks the Run method of RotationManager.
func (m *MockRotationManager) Run(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Status mocks the Status method of RotationManager.
func (m *MockRotationManager) Status(ctx context.Context) (*rotationDomain.Status, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.Status), args.Error(1)
}
