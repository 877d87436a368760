package domain

import (
	"github.com/allisson/dominion/internal/errors"
)

// Key material error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors so the
// HTTP layer can map them to status codes.
var (
	// ErrUnknownProvider indicates the provider is not in the configured allow-list.
	//
	// HTTP Status: 422 Unprocessable Entity
	ErrUnknownProvider = errors.Wrap(errors.ErrInvalidInput, "unknown provider")

	// ErrInvalidProviderName indicates a provider name in the allow-list is malformed.
	ErrInvalidProviderName = errors.Wrap(errors.ErrInvalidInput, "invalid provider name")

	// ErrEmptyProviderSet indicates the allow-list has no providers.
	ErrEmptyProviderSet = errors.Wrap(errors.ErrInvalidInput, "provider allow-list is empty")

	// ErrInvalidRootKey indicates imported root key material is malformed or has the wrong size.
	//
	// Root keys must be exactly 32 bytes. This is a configuration error and is fatal at startup.
	ErrInvalidRootKey = errors.Wrap(errors.ErrInvalidInput, "invalid root key")

	// ErrWeakRootKey indicates imported root key material failed the entropy check.
	ErrWeakRootKey = errors.Wrap(errors.ErrInvalidInput, "root key entropy below threshold")

	// ErrNoCurrentKey indicates the key ring has not been bootstrapped.
	ErrNoCurrentKey = errors.Wrap(errors.ErrNotFound, "no current root key")

	// ErrRotationInProgress indicates a deprecated key is still inside its overlap window,
	// or another rotation is running.
	//
	// HTTP Status: 409 Conflict
	ErrRotationInProgress = errors.Wrap(errors.ErrConflict, "rotation in progress")

	// ErrStaleEpoch indicates a rotation tried to install a key whose epoch is not newer than the current one.
	ErrStaleEpoch = errors.Wrap(errors.ErrConflict, "stale key epoch")

	// ErrRootKeyNotFound indicates the root key was not found in the store.
	ErrRootKeyNotFound = errors.Wrap(errors.ErrNotFound, "root key not found")
)
