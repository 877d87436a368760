package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuditEventDeleter struct {
	mock.Mock
}

func (m *MockAuditEventDeleter) DeleteOlderThan(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	args := m.Called(ctx, cutoff, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

func TestRunCleanAuditEvents(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	days := 30
	cutoff := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("text-output", func(t *testing.T) {
		repo := &MockAuditEventDeleter{}
		repo.On("DeleteOlderThan", ctx, cutoff, false).Return(int64(100), nil)

		var out bytes.Buffer
		err := RunCleanAuditEvents(ctx, repo, clock, logger, &out, days, false, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "Successfully deleted 100 audit event(s)")
		repo.AssertExpectations(t)
	})

	t.Run("dry-run-text-output", func(t *testing.T) {
		repo := &MockAuditEventDeleter{}
		repo.On("DeleteOlderThan", ctx, cutoff, true).Return(int64(7), nil)

		var out bytes.Buffer
		err := RunCleanAuditEvents(ctx, repo, clock, logger, &out, days, true, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "Would delete 7 audit event(s)")
		repo.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		repo := &MockAuditEventDeleter{}
		repo.On("DeleteOlderThan", ctx, cutoff, true).Return(int64(50), nil)

		var out bytes.Buffer
		err := RunCleanAuditEvents(ctx, repo, clock, logger, &out, days, true, "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"count": 50`)
		require.Contains(t, out.String(), `"dry_run": true`)
		repo.AssertExpectations(t)
	})

	t.Run("repository-error", func(t *testing.T) {
		repo := &MockAuditEventDeleter{}
		repo.On("DeleteOlderThan", ctx, cutoff, false).Return(int64(0), errors.New("connection refused"))

		err := RunCleanAuditEvents(ctx, repo, clock, logger, &bytes.Buffer{}, days, false, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to delete audit events")
	})

	t.Run("invalid-days", func(t *testing.T) {
		repo := &MockAuditEventDeleter{}
		err := RunCleanAuditEvents(ctx, repo, clock, logger, &bytes.Buffer{}, -1, false, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "days must be a positive number")
	})

	t.Run("invalid-format", func(t *testing.T) {
		repo := &MockAuditEventDeleter{}
		err := RunCleanAuditEvents(ctx, repo, clock, logger, &bytes.Buffer{}, days, false, "xml")

		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid format")
	})
}
