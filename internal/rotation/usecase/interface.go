package usecase

import (
	"context"
	"time"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
	keysDomain "github.com/allisson/dominion/internal/keys/domain"
	rotationDomain "github.com/allisson/dominion/internal/rotation/domain"
)

// RootKeys is the root key lifecycle the manager drives.
type RootKeys interface {
	Rotate(ctx context.Context) (*keysDomain.Rotation, error)
	PurgeExpired(ctx context.Context) (*keysDomain.RootKey, error)
	Status(ctx context.Context) (keysDomain.Status, error)
}

// AnomalyCounter counts gate anomaly trips.
type AnomalyCounter interface {
	AnomalyTripsSince(since time.Time) int
}

// AuditRecorder receives rotation and purge events.
type AuditRecorder interface {
	Record(event auditDomain.Event)
}

// RotationManager rotates root keys on demand or on schedule.
type RotationManager interface {
	// Rotate installs a new root key. Only one rotation runs at a time.
	Rotate(ctx context.Context, input *rotationDomain.RotateInput) (*rotationDomain.Result, error)
	// Run purges overdue keys and rotates when the key is too old or anomaly trips
	// exceed the threshold, until ctx is cancelled.
	Run(ctx context.Context) error
	// Status describes the key ring and whether a scheduled rotation is due.
	Status(ctx context.Context) (*rotationDomain.Status, error)
}
