package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/allisson/dominion/internal/entropy"
	keysDomain "github.com/allisson/dominion/internal/keys/domain"
)

// RootKeyCodec generates root keys, imports operator-supplied ones, and wraps keys
// for storage with an optional KMS keeper.
type RootKeyCodec struct {
	keeper    keysDomain.KMSKeeper
	validator *entropy.Validator
}

// NewRootKeyCodec creates a codec. keeper may be nil, in which case keys are neither
// wrapped nor expected to be KMS ciphertext on import.
func NewRootKeyCodec(keeper keysDomain.KMSKeeper, validator *entropy.Validator) *RootKeyCodec {
	if validator == nil {
		validator = entropy.NewValidator()
	}
	return &RootKeyCodec{keeper: keeper, validator: validator}
}

// HasKeeper reports whether a KMS keeper is configured.
func (c *RootKeyCodec) HasKeeper() bool {
	return c.keeper != nil
}

// Generate returns a fresh random root key. Internally generated randomness is not
// entropy-checked.
func (c *RootKeyCodec) Generate() ([]byte, error) {
	key := make([]byte, keysDomain.RootKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate root key: %w", err)
	}
	return key, nil
}

// Wrap encrypts key with the KMS keeper. Without a keeper it returns nil.
func (c *RootKeyCodec) Wrap(ctx context.Context, key []byte) ([]byte, error) {
	if c.keeper == nil {
		return nil, nil
	}
	ciphertext, err := c.keeper.Encrypt(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap root key with KMS: %w", err)
	}
	return ciphertext, nil
}

// Unwrap decrypts a stored root key and checks its size.
func (c *RootKeyCodec) Unwrap(ctx context.Context, encrypted []byte) ([]byte, error) {
	if c.keeper == nil {
		return nil, fmt.Errorf("%w: KMS keeper required to unwrap stored root keys", keysDomain.ErrInvalidRootKey)
	}
	key, err := c.keeper.Decrypt(ctx, encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap root key with KMS: %w", err)
	}
	if len(key) != keysDomain.RootKeySize {
		keysDomain.Zero(key)
		return nil, fmt.Errorf("%w: unwrapped key has %d bytes", keysDomain.ErrInvalidRootKey, len(key))
	}
	return key, nil
}

// Import decodes operator-supplied root key material. With a keeper the value is
// standard base64 KMS ciphertext, otherwise base64url key bytes (padding optional).
// The key must be exactly RootKeySize bytes and pass the entropy check.
func (c *RootKeyCodec) Import(ctx context.Context, encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)

	var key []byte
	if c.keeper != nil {
		ciphertext, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: ciphertext is not valid base64", keysDomain.ErrInvalidRootKey)
		}
		key, err = c.keeper.Decrypt(ctx, ciphertext)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt root key with KMS: %w", err)
		}
	} else {
		var err error
		key, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: key is not valid base64url", keysDomain.ErrInvalidRootKey)
		}
	}

	if len(key) != keysDomain.RootKeySize {
		size := len(key)
		keysDomain.Zero(key)
		return nil, fmt.Errorf(
			"%w: must be %d bytes, got %d",
			keysDomain.ErrInvalidRootKey,
			keysDomain.RootKeySize,
			size,
		)
	}
	if !c.validator.IsAcceptable(key) {
		keysDomain.Zero(key)
		return nil, keysDomain.ErrWeakRootKey
	}
	return key, nil
}

// EncodeRootKey encodes key bytes as unpadded base64url.
func EncodeRootKey(key []byte) string {
	return base64.RawURLEncoding.EncodeToString(key)
}
