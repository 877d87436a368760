package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: ""},
		{name: "plain", err: errors.New("disk full"), expected: "internal"},
		{name: "invalid input", err: Wrap(ErrInvalidInput, "unknown provider"), expected: "invalid_input"},
		{name: "rate limited", err: Wrapf(ErrTooManyRequests, "provider %s", "render"), expected: "rate_limited"},
		{name: "locked", err: Wrap(ErrLocked, "behavior anomaly"), expected: "behavior_anomaly"},
		{name: "conflict", err: Wrap(ErrConflict, "rotation in progress"), expected: "conflict"},
		{name: "not found", err: ErrNotFound, expected: "not_found"},
		{name: "unauthorized", err: ErrUnauthorized, expected: "unauthorized"},
		{name: "forbidden", err: ErrForbidden, expected: "forbidden"},
		{name: "joined picks first listed", err: errors.Join(ErrConflict, ErrInvalidInput), expected: "invalid_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Kind(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	baseErr := errors.New("base error")

	t.Run("wrap non-nil error", func(t *testing.T) {
		wrapped := Wrap(baseErr, "wrapped")
		require.Error(t, wrapped)
		assert.Equal(t, "wrapped: base error", wrapped.Error())
		assert.True(t, errors.Is(wrapped, baseErr))
	})

	t.Run("wrap nil error", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "wrapped"))
	})
}

func TestWrapf(t *testing.T) {
	baseErr := errors.New("base error")

	t.Run("wrapf non-nil error", func(t *testing.T) {
		wrapped := Wrapf(baseErr, "provider %s", "render")
		require.Error(t, wrapped)
		assert.Equal(t, "provider render: base error", wrapped.Error())
		assert.True(t, Is(wrapped, baseErr))
	})

	t.Run("wrapf nil error", func(t *testing.T) {
		assert.NoError(t, Wrapf(nil, "provider %s", "render"))
	})
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrConflict,
		ErrInvalidInput,
		ErrUnauthorized,
		ErrForbidden,
		ErrLocked,
		ErrTooManyRequests,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, Is(a, b), "%v should not match %v", a, b)
		}
	}
}
