// Package mocks provides mock implementations for testing key management.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	keysDomain "github.com/allisson/dominion/internal/keys/domain"
)

// MockKMSKeeper is a mock implementation of KMSKeeper.
type MockKMSKeeper struct {
	mock.Mock
}

// Encrypt mocks the Encrypt method.
func (m *MockKMSKeeper) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	args := m.Called(ctx, plaintext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Decrypt mocks the Decrypt method.
func (m *MockKMSKeeper) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	args := m.Called(ctx, ciphertext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Close mocks the Close method.
func (m *MockKMSKeeper) Close() error {
	return m.Called().Error(0)
}

// MockKMSService is a mock implementation of KMSService.
type MockKMSService struct {
	mock.Mock
}

// OpenKeeper mocks the OpenKeeper method.
func (m *MockKMSService) OpenKeeper(ctx context.Context, uri string) (keysDomain.KMSKeeper, error) {
	args := m.Called(ctx, uri)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(keysDomain.KMSKeeper), args.Error(1)
}

// MockRootKeyRepository is a mock implementation of RootKeyRepository.
type MockRootKeyRepository struct {
	mock.Mock
}

// Create mocks the Create method.
func (m *MockRootKeyRepository) Create(ctx context.Context, key *keysDomain.RootKey) error {
	return m.Called(ctx, key).Error(0)
}

// MarkDeprecated mocks the MarkDeprecated method.
func (m *MockRootKeyRepository) MarkDeprecated(
	ctx context.Context,
	id uuid.UUID,
	deprecatedAt, overlapEndsAt time.Time,
) error {
	return m.Called(ctx, id, deprecatedAt, overlapEndsAt).Error(0)
}

// MarkPurged mocks the MarkPurged method.
func (m *MockRootKeyRepository) MarkPurged(ctx context.Context, id uuid.UUID, purgedAt time.Time) error {
	return m.Called(ctx, id, purgedAt).Error(0)
}

// List mocks the List method.
func (m *MockRootKeyRepository) List(ctx context.Context) ([]*keysDomain.RootKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*keysDomain.RootKey), args.Error(1)
}

// MockTxManager runs the transaction function inline.
type MockTxManager struct {
	mock.Mock
}

// WithTx mocks the WithTx method and executes fn when no error is configured.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}
