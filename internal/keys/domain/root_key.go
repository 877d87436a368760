// Package domain defines the root key models behind token signing.
//
// A single RootKey is current at any time. Rotation demotes it to deprecated for an
// overlap window, after which its material is zeroed and only its activity interval
// is remembered so that tokens it signed can be reported as belonging to a retired epoch.
package domain

import (
	"crypto/sha512"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// RootKeySize is the root key length in bytes (256 bits).
const RootKeySize = 32

// RootKey is one epoch of the long-lived signing secret.
type RootKey struct {
	ID            uuid.UUID  // Unique identifier (UUIDv7)
	Epoch         uint64     // Monotonic version, starting at 1
	Key           []byte     // Plaintext key (never persisted, never logged)
	EncryptedKey  []byte     // KMS ciphertext, persisted; empty for unwrapped in-memory keys
	CreatedAt     time.Time  // Moment the key became current
	DeprecatedAt  *time.Time // Moment the key was demoted by a rotation
	OverlapEndsAt *time.Time // End of the window in which the deprecated key still validates
	PurgedAt      *time.Time // Moment the material was destroyed
}

// IsDeprecated reports whether the key was demoted by a rotation.
func (k *RootKey) IsDeprecated() bool {
	return k.DeprecatedAt != nil
}

// IsPurged reports whether the key material was destroyed.
func (k *RootKey) IsPurged() bool {
	return k.PurgedAt != nil
}

// ValidatesAt reports whether the key may verify signatures at now.
func (k *RootKey) ValidatesAt(now time.Time) bool {
	if k.IsPurged() || len(k.Key) == 0 {
		return false
	}
	if k.OverlapEndsAt == nil {
		return true
	}
	return now.Before(*k.OverlapEndsAt)
}

// Fingerprint returns the first 16 hex characters of SHA-384 over the key, or an
// empty string once the material is gone.
func (k *RootKey) Fingerprint() string {
	if len(k.Key) == 0 {
		return ""
	}
	sum := sha512.Sum384(k.Key)
	return hex.EncodeToString(sum[:])[:16]
}

// Age returns how long the key has been current or was current until demotion.
func (k *RootKey) Age(now time.Time) time.Duration {
	if k.DeprecatedAt != nil {
		return k.DeprecatedAt.Sub(k.CreatedAt)
	}
	return now.Sub(k.CreatedAt)
}

// EpochWindow is the activity interval of a retired key. Tokens issued inside it were
// signed by that epoch.
type EpochWindow struct {
	Epoch       uint64    `json:"epoch"`
	ActivatedAt time.Time `json:"activated_at"`
	RetiredAt   time.Time `json:"retired_at"`
}

// Contains reports whether t falls inside the window at second precision.
func (w EpochWindow) Contains(t time.Time) bool {
	start := w.ActivatedAt.Truncate(time.Second)
	return !t.Before(start) && !t.After(w.RetiredAt)
}

// Rotation describes a completed key swap.
type Rotation struct {
	PreviousEpoch  uint64
	PreviousID     uuid.UUID
	NewEpoch       uint64
	NewID          uuid.UUID
	NewFingerprint string
	RotatedAt      time.Time
	OverlapEndsAt  time.Time
}
