package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	keysDomain "github.com/allisson/dominion/internal/keys/domain"
)

// RootKeyRepository defines the interface for root key persistence.
type RootKeyRepository interface {
	Create(ctx context.Context, key *keysDomain.RootKey) error
	MarkDeprecated(ctx context.Context, id uuid.UUID, deprecatedAt, overlapEndsAt time.Time) error
	// MarkPurged records the purge and discards the stored ciphertext.
	MarkPurged(ctx context.Context, id uuid.UUID, purgedAt time.Time) error
	// List returns every stored key ordered by epoch ascending.
	List(ctx context.Context) ([]*keysDomain.RootKey, error)
}

// RootKeyUseCase manages the root key lifecycle backing KeyMaterial.
type RootKeyUseCase interface {
	// Bootstrap loads stored keys into the ring, or creates the first key from the
	// imported material or fresh randomness. Overdue deprecated keys are purged.
	Bootstrap(ctx context.Context) error
	// Rotate installs a freshly generated key and demotes the current one.
	Rotate(ctx context.Context) (*keysDomain.Rotation, error)
	// PurgeExpired destroys the deprecated key once its overlap window has closed.
	// Returns nil when nothing was due.
	PurgeExpired(ctx context.Context) (*keysDomain.RootKey, error)
	// Status describes the ring without exposing key material.
	Status(ctx context.Context) (keysDomain.Status, error)
}
