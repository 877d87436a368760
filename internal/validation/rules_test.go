package validation

import (
	"errors"
	"testing"

	validation "github.com/jellydator/validation"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/dominion/internal/errors"
)

func intPtr(v int) *int { return &v }

func TestWrapValidationError(t *testing.T) {
	assert.NoError(t, WrapValidationError(nil))

	err := WrapValidationError(errors.New("provider: cannot be blank"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "provider: cannot be blank")
}

func TestNotBlankAndNoWhitespace(t *testing.T) {
	assert.NoError(t, validation.Validate("render", NotBlank, NoWhitespace))
	assert.Error(t, validation.Validate("   ", NotBlank))
	assert.Error(t, validation.Validate(" render", NoWhitespace))
}

func TestProviderName(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		shouldErr bool
	}{
		{"simple", "render", false},
		{"with dash and digits", "gh-actions-2", false},
		{"upper case", "Render", true},
		{"leading dash", "-render", true},
		{"space", "my provider", true},
		{"too long", "a123456789012345678901234567890123456789012345678901234567890123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Validate(tt.value, ProviderName)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResonanceScore(t *testing.T) {
	assert.NoError(t, validation.Validate((*int)(nil), ResonanceScore))
	assert.NoError(t, validation.Validate(intPtr(0), ResonanceScore))
	assert.NoError(t, validation.Validate(intPtr(100), ResonanceScore))
	assert.Error(t, validation.Validate(intPtr(101), ResonanceScore))
	assert.Error(t, validation.Validate(intPtr(-1), ResonanceScore))
	assert.Error(t, validation.Validate("85", ResonanceScore))
}
