// Package repository implements the audit event sinks: structured log, rotating
// file, Kafka topic, and the PostgreSQL/MySQL audit_events tables.
package repository

import (
	"context"
	"log/slog"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
)

// LogSink writes audit events as structured log records.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging through logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Write logs the event at info level.
func (s *LogSink) Write(ctx context.Context, event auditDomain.Event) error {
	attrs := []slog.Attr{
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", string(event.Type)),
		slog.String("outcome", string(event.Outcome)),
		slog.String("provider", event.Provider),
		slog.Time("timestamp", event.CreatedAt),
	}
	if event.TokenID != nil {
		attrs = append(attrs, slog.String("token_id", event.TokenID.String()))
	}
	if event.Detail != "" {
		attrs = append(attrs, slog.String("detail", event.Detail))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "audit event", attrs...)
	return nil
}
