// Package service provides key derivation, root key import, and KMS access for the token authority.
package service

import (
	"crypto/sha512"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// DerivedKeySize is the derived signing key length (384 bits).
	DerivedKeySize = 48
	// KeyDerivationAlgorithm names the extract-and-expand function.
	KeyDerivationAlgorithm = "HKDF-SHA384"
)

// DerivationContext returns the HKDF info string binding a derived key to a provider
// and protocol version.
func DerivationContext(provider, version string) string {
	return fmt.Sprintf("forge-dominion-%s-%s", provider, version)
}

// KeyDerivationService derives per-provider signing keys from root key material.
type KeyDerivationService interface {
	// Derive returns a DerivedKeySize key. The result is a pure function of its inputs.
	Derive(root []byte, provider, version string, salt []byte) ([]byte, error)
}

type hkdfDerivationService struct{}

// NewKeyDerivationService creates the HKDF-SHA384 derivation service.
func NewKeyDerivationService() KeyDerivationService {
	return &hkdfDerivationService{}
}

// Derive runs HKDF-SHA384 with the root key as input keying material.
func (s *hkdfDerivationService) Derive(root []byte, provider, version string, salt []byte) ([]byte, error) {
	if len(root) == 0 {
		return nil, fmt.Errorf("root key material is empty")
	}

	reader := hkdf.New(sha512.New384, root, salt, []byte(DerivationContext(provider, version)))
	key := make([]byte, DerivedKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	return key, nil
}
