// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/dominion/internal/errors"
)

var providerNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// ProviderName validates the provider identifier format: lower-case alphanumerics,
// dash and underscore, at most 63 characters.
var ProviderName = validation.NewStringRuleWithError(
	providerNameRegex.MatchString,
	validation.NewError("validation_provider_name", "must be a lower-case provider identifier"),
)

// ResonanceScore validates an optional 0..100 score.
var ResonanceScore = validation.By(func(value interface{}) error {
	score, ok := value.(*int)
	if !ok {
		if v, isInt := value.(int); isInt {
			score = &v
		} else {
			return validation.NewError("validation_resonance_type", "must be an integer")
		}
	}
	if score == nil {
		return nil
	}
	if *score < 0 || *score > 100 {
		return validation.NewError("validation_resonance_range", "must be between 0 and 100")
	}
	return nil
})
