package domain

import (
	"fmt"

	"github.com/allisson/dominion/internal/errors"
)

var (
	// ErrRenewalNotDue indicates the token is not yet inside the last tenth of its lifetime.
	//
	// HTTP Status: 409 Conflict
	ErrRenewalNotDue = errors.Wrap(errors.ErrConflict, "renewal not due")

	// ErrEnvelopeRejected indicates the envelope presented for renewal failed validation.
	//
	// HTTP Status: 401 Unauthorized
	ErrEnvelopeRejected = errors.Wrap(errors.ErrUnauthorized, "envelope rejected")
)

// RejectionError carries the validation reason of a rejected envelope.
type RejectionError struct {
	Reason Reason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrEnvelopeRejected.Error(), e.Reason)
}

// Unwrap returns ErrEnvelopeRejected.
func (e *RejectionError) Unwrap() error {
	return ErrEnvelopeRejected
}
