// Package errors holds the sentinel errors every domain package wraps. Handlers map
// them to HTTP status codes and audit records carry their Kind.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the request conflicts with current state, such as a
	// rotation already in progress or one attempted inside the overlap window.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates a malformed request, an out-of-range score or a
	// provider outside the allow-list.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates a missing or wrong operator token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller is known but may not perform the action.
	ErrForbidden = errors.New("forbidden")

	// ErrLocked indicates a provider is locked until its cool-down elapses or an
	// operator resets it.
	ErrLocked = errors.New("locked")

	// ErrTooManyRequests indicates the caller exceeded its admission rate.
	ErrTooManyRequests = errors.New("too many requests")
)

// kinds is checked in order; the first sentinel found in the chain wins.
var kinds = []struct {
	sentinel error
	name     string
}{
	{ErrInvalidInput, "invalid_input"},
	{ErrTooManyRequests, "rate_limited"},
	{ErrLocked, "behavior_anomaly"},
	{ErrUnauthorized, "unauthorized"},
	{ErrForbidden, "forbidden"},
	{ErrConflict, "conflict"},
	{ErrNotFound, "not_found"},
}

// Kind names the sentinel err wraps, or "internal" when it wraps none. nil has no kind.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.name
		}
	}
	return "internal"
}

// Wrap prefixes err with message, keeping it matchable with Is. nil stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
