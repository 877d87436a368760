package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// AuditEventDeleter removes persisted audit events.
type AuditEventDeleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error)
}

// RunCleanAuditEvents deletes audit events older than days. Supports dry-run mode to
// preview the deletion count and both text/JSON output formats.
//
// Requirements: Database must be migrated and accessible.
func RunCleanAuditEvents(
	ctx context.Context,
	repo AuditEventDeleter,
	clock clockwork.Clock,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	format string,
) error {
	if days < 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("cleaning audit events",
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	cutoff := clock.Now().UTC().AddDate(0, 0, -days)
	count, err := repo.DeleteOlderThan(ctx, cutoff, dryRun)
	if err != nil {
		return fmt.Errorf("failed to delete audit events: %w", err)
	}

	if format == FormatJSON {
		if err := writeJSON(writer, map[string]any{
			"count":   count,
			"days":    days,
			"cutoff":  cutoff,
			"dry_run": dryRun,
		}); err != nil {
			return err
		}
	} else if dryRun {
		_, _ = fmt.Fprintf(writer, "Dry-run mode: Would delete %d audit event(s) older than %d day(s)\n", count, days)
	} else {
		_, _ = fmt.Fprintf(writer, "Successfully deleted %d audit event(s) older than %d day(s)\n", count, days)
	}

	logger.Info("cleanup completed",
		slog.Int64("count", count),
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)
	return nil
}
