// Package service issues and verifies the operator bearer token.
// Tokens are random 32-byte values; only their Argon2id hash is configured on the server.
package service

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/allisson/go-pwdhash"

	apperrors "github.com/allisson/dominion/internal/errors"
)

// TokenService generates operator tokens and checks them against a stored hash.
type TokenService interface {
	// Generate returns a new plain token and its PHC-formatted hash.
	Generate() (plainToken string, tokenHash string, err error)
	// Hash hashes an existing plain token.
	Hash(plainToken string) (string, error)
	// Verify reports whether plainToken matches tokenHash in constant time.
	Verify(plainToken string, tokenHash string) bool
}

type tokenService struct {
	hasher *pwdhash.PasswordHasher
}

// NewTokenService creates a TokenService using the Moderate Argon2id policy.
func NewTokenService() TokenService {
	hasher, err := pwdhash.New(
		pwdhash.WithPolicy(pwdhash.PolicyModerate),
	)
	if err != nil {
		panic(err)
	}
	return &tokenService{hasher: hasher}
}

func (s *tokenService) Generate() (string, string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate operator token")
	}
	plainToken := base64.RawURLEncoding.EncodeToString(randomBytes)

	tokenHash, err := s.Hash(plainToken)
	if err != nil {
		return "", "", err
	}
	return plainToken, tokenHash, nil
}

func (s *tokenService) Hash(plainToken string) (string, error) {
	tokenHash, err := s.hasher.Hash([]byte(plainToken))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash operator token")
	}
	return tokenHash, nil
}

func (s *tokenService) Verify(plainToken string, tokenHash string) bool {
	if plainToken == "" || tokenHash == "" {
		return false
	}
	ok, err := s.hasher.Verify([]byte(plainToken), tokenHash)
	if err != nil {
		return false
	}
	return ok
}
