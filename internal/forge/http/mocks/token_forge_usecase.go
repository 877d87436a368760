// Package mocks provides mock implementations for testing the token handlers.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	forgeDomain "github.com/allisson/dominion/internal/forge/domain"
)

// MockTokenForgeUseCase is a mock implementation of TokenForgeUseCase for testing.
type MockTokenForgeUseCase struct {
	mock.Mock
}

// Mint mocks the Mint method of TokenForgeUseCase.
func (m *MockTokenForgeUseCase) Mint(
	ctx context.Context,
	input *forgeDomain.MintInput,
) (*forgeDomain.MintOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*forgeDomain.MintOutput), args.Error(1)
}

// Validate mocks the Validate method of TokenForgeUseCase.
func (m *MockTokenForgeUseCase) Validate(
	ctx context.Context,
	envelope forgeDomain.Envelope,
) forgeDomain.ValidationResult {
	args := m.Called(ctx, envelope)
	return args.Get(0).(forgeDomain.ValidationResult)
}

// Renew mocks the Renew method of TokenForgeUseCase.
func (m *MockTokenForgeUseCase) Renew(
	ctx context.Context,
	input *forgeDomain.RenewInput,
) (*forgeDomain.MintOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*forgeDomain.MintOutput), args.Error(1)
}
