package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	keysDomain "github.com/allisson/dominion/internal/keys/domain"
)

// DerivedKey is a signing key bound to the root key epoch that produced it.
// Callers zero Key when done.
type DerivedKey struct {
	Epoch uint64
	Key   []byte
}

// KeyMaterial holds the root key ring and derives per-provider signing keys from it.
type KeyMaterial struct {
	ring      *keysDomain.KeyRing
	providers *keysDomain.ProviderRegistry
	deriver   KeyDerivationService
	version   string
}

// NewKeyMaterial creates a KeyMaterial over ring, restricted to the providers in the registry.
func NewKeyMaterial(
	ring *keysDomain.KeyRing,
	providers *keysDomain.ProviderRegistry,
	deriver KeyDerivationService,
	version string,
) *KeyMaterial {
	return &KeyMaterial{
		ring:      ring,
		providers: providers,
		deriver:   deriver,
		version:   version,
	}
}

// Version returns the protocol version used for new derivations.
func (m *KeyMaterial) Version() string {
	return m.version
}

// Ring returns the underlying key ring.
func (m *KeyMaterial) Ring() *keysDomain.KeyRing {
	return m.ring
}

// Providers returns the provider registry.
func (m *KeyMaterial) Providers() *keysDomain.ProviderRegistry {
	return m.providers
}

// IsKnownProvider reports whether provider is in the active allow-list.
func (m *KeyMaterial) IsKnownProvider(provider string) bool {
	return m.providers.Contains(provider)
}

// Derive derives the signing key for provider and salt from the current root key.
func (m *KeyMaterial) Derive(provider string, salt []byte) (*DerivedKey, error) {
	if !m.providers.Contains(provider) {
		return nil, fmt.Errorf("%w: %s", keysDomain.ErrUnknownProvider, provider)
	}

	var derived *DerivedKey
	err := m.ring.View(func(current, _ *keysDomain.RootKey) error {
		key, err := m.deriver.Derive(current.Key, provider, m.version, salt)
		if err != nil {
			return err
		}
		derived = &DerivedKey{Epoch: current.Epoch, Key: key}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return derived, nil
}

// Candidates derives a key from the current root key and then from the deprecated one,
// when it still validates at now, calling fn for each until fn returns true. The
// derived key passed to fn is zeroed after fn returns. The allow-list is not consulted
// here: a signature is checked before the provider it names is trusted.
func (m *KeyMaterial) Candidates(
	provider, version string,
	salt []byte,
	now time.Time,
	fn func(DerivedKey) bool,
) error {
	return m.ring.View(func(current, deprecated *keysDomain.RootKey) error {
		for _, root := range []*keysDomain.RootKey{current, deprecated} {
			if root == nil || !root.ValidatesAt(now) {
				continue
			}
			derived, err := m.DeriveWith(root, provider, version, salt)
			if err != nil {
				return err
			}
			done := fn(*derived)
			keysDomain.Zero(derived.Key)
			if done {
				return nil
			}
		}
		return nil
	})
}

// DeriveWith derives the signing key for provider from a specific ring entry. The
// caller must hold the ring's read lock, as Candidates does.
func (m *KeyMaterial) DeriveWith(root *keysDomain.RootKey, provider, version string, salt []byte) (*DerivedKey, error) {
	key, err := m.deriver.Derive(root.Key, provider, version, salt)
	if err != nil {
		return nil, err
	}
	return &DerivedKey{Epoch: root.Epoch, Key: key}, nil
}

// CurrentRootID returns the epoch and identifier of the current root key.
func (m *KeyMaterial) CurrentRootID() (uint64, uuid.UUID, error) {
	var (
		epoch uint64
		id    uuid.UUID
	)
	err := m.ring.View(func(current, _ *keysDomain.RootKey) error {
		epoch, id = current.Epoch, current.ID
		return nil
	})
	return epoch, id, err
}

// Rotate makes newKey current and demotes the previous key for the overlap window.
func (m *KeyMaterial) Rotate(newKey *keysDomain.RootKey, now time.Time, overlap time.Duration) (*keysDomain.RootKey, error) {
	return m.ring.Rotate(newKey, now, overlap)
}

// RetiredEpochAt reports the retired epoch that was current at issuedAt, if any.
func (m *KeyMaterial) RetiredEpochAt(issuedAt, now time.Time) (uint64, bool) {
	return m.ring.RetiredEpochAt(issuedAt, now)
}
