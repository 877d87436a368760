package gate

import (
	"fmt"
	"math"
	"time"

	apperrors "github.com/allisson/dominion/internal/errors"
)

var (
	// ErrRateLimited indicates the provider exceeded its admission rate. Temporary.
	//
	// HTTP Status: 429 Too Many Requests (with Retry-After)
	ErrRateLimited = apperrors.Wrap(apperrors.ErrTooManyRequests, "rate limited")

	// ErrBehaviorAnomaly indicates the provider is locked after too many failures.
	//
	// HTTP Status: 423 Locked
	ErrBehaviorAnomaly = apperrors.Wrap(apperrors.ErrLocked, "behavior anomaly")

	// ErrMalformedRequest indicates the provider or metadata breaks the request limits.
	ErrMalformedRequest = apperrors.Wrap(apperrors.ErrInvalidInput, "malformed request")

	// ErrSecretInMetadata indicates a metadata value looks like a long-lived credential.
	ErrSecretInMetadata = apperrors.Wrap(apperrors.ErrInvalidInput, "metadata value looks like a secret")
)

// RateLimitError carries how long the provider should wait before retrying.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: provider %s, retry after %s", ErrRateLimited.Error(), e.Provider, e.RetryAfter)
}

// Unwrap returns ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least 1.
func (e *RateLimitError) RetryAfterSeconds() int {
	return max(int(math.Ceil(e.RetryAfter.Seconds())), 1)
}
