package service

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_Generate(t *testing.T) {
	service := NewTokenService()

	t.Run("Success_GeneratesVerifiableToken", func(t *testing.T) {
		plainToken, tokenHash, err := service.Generate()
		require.NoError(t, err)

		decoded, err := base64.RawURLEncoding.DecodeString(plainToken)
		require.NoError(t, err)
		assert.Len(t, decoded, 32)

		assert.Contains(t, tokenHash, "$argon2id$")
		assert.True(t, service.Verify(plainToken, tokenHash))
	})

	t.Run("Success_GeneratesUniqueTokens", func(t *testing.T) {
		plain1, hash1, err := service.Generate()
		require.NoError(t, err)
		plain2, hash2, err := service.Generate()
		require.NoError(t, err)

		assert.NotEqual(t, plain1, plain2)
		assert.NotEqual(t, hash1, hash2)
	})
}

func TestTokenService_Verify(t *testing.T) {
	service := NewTokenService()
	tokenHash, err := service.Hash("operator-token")
	require.NoError(t, err)

	tests := []struct {
		name      string
		plain     string
		tokenHash string
		expected  bool
	}{
		{name: "Match", plain: "operator-token", tokenHash: tokenHash, expected: true},
		{name: "WrongToken", plain: "other-token", tokenHash: tokenHash, expected: false},
		{name: "EmptyToken", plain: "", tokenHash: tokenHash, expected: false},
		{name: "EmptyHash", plain: "operator-token", tokenHash: "", expected: false},
		{name: "GarbageHash", plain: "operator-token", tokenHash: "not-a-phc-string", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, service.Verify(tt.plain, tt.tokenHash))
		})
	}
}
