package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
	"github.com/allisson/dominion/internal/database"
	apperrors "github.com/allisson/dominion/internal/errors"
)

// MySQLAuditEventRepository persists audit events to MySQL. UUIDs are stored as
// BINARY(16).
type MySQLAuditEventRepository struct {
	db *sql.DB
}

// Write inserts event.
func (m *MySQLAuditEventRepository) Write(ctx context.Context, event auditDomain.Event) error {
	querier := database.GetTx(ctx, m.db)

	id, err := event.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit event id")
	}
	var tokenID []byte
	if event.TokenID != nil {
		if tokenID, err = event.TokenID.MarshalBinary(); err != nil {
			return apperrors.Wrap(err, "failed to marshal token id")
		}
	}

	query := `INSERT INTO audit_events (id, event_type, outcome, provider, token_id, detail, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		string(event.Type),
		string(event.Outcome),
		event.Provider,
		tokenID,
		event.Detail,
		event.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit event")
	}
	return nil
}

// List returns events ordered by created_at descending with pagination.
func (m *MySQLAuditEventRepository) List(ctx context.Context, offset, limit int) ([]auditDomain.Event, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, event_type, outcome, provider, token_id, detail, created_at
			  FROM audit_events ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit events")
	}
	defer func() {
		_ = rows.Close()
	}()

	events := make([]auditDomain.Event, 0)
	for rows.Next() {
		var (
			event     auditDomain.Event
			id        []byte
			tokenID   []byte
			eventType string
			outcome   string
		)
		err := rows.Scan(&id, &eventType, &outcome, &event.Provider, &tokenID, &event.Detail, &event.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit event")
		}
		if err := event.ID.UnmarshalBinary(id); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit event id")
		}
		if len(tokenID) > 0 {
			var parsed uuid.UUID
			if err := parsed.UnmarshalBinary(tokenID); err != nil {
				return nil, apperrors.Wrap(err, "failed to unmarshal token id")
			}
			event.TokenID = &parsed
		}
		event.Type = auditDomain.EventType(eventType)
		event.Outcome = auditDomain.Outcome(outcome)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// DeleteOlderThan removes events created before cutoff, or only counts them when
// dryRun is set.
func (m *MySQLAuditEventRepository) DeleteOlderThan(
	ctx context.Context,
	cutoff time.Time,
	dryRun bool,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	if dryRun {
		var count int64
		query := `SELECT COUNT(*) FROM audit_events WHERE created_at < ?`
		if err := querier.QueryRowContext(ctx, query, cutoff).Scan(&count); err != nil {
			return 0, apperrors.Wrap(err, "failed to count audit events")
		}
		return count, nil
	}

	query := `DELETE FROM audit_events WHERE created_at < ?`
	result, err := querier.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete audit events")
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read affected rows")
	}
	return count, nil
}

// NewMySQLAuditEventRepository creates a new MySQL audit event repository.
func NewMySQLAuditEventRepository(db *sql.DB) *MySQLAuditEventRepository {
	return &MySQLAuditEventRepository{db: db}
}
