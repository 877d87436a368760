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

// PostgreSQLAuditEventRepository persists audit events to the audit_events table and
// serves as the "database" audit sink.
//
// Database schema requirements:
//   - id: UUID PRIMARY KEY
//   - event_type, outcome: VARCHAR(32)
//   - provider: VARCHAR(64)
//   - token_id: UUID NULL
//   - detail: TEXT
//   - created_at: TIMESTAMPTZ (indexed for retention cleanup)
type PostgreSQLAuditEventRepository struct {
	db *sql.DB
}

// Write inserts event.
func (p *PostgreSQLAuditEventRepository) Write(ctx context.Context, event auditDomain.Event) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO audit_events (id, event_type, outcome, provider, token_id, detail, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		event.ID,
		string(event.Type),
		string(event.Outcome),
		event.Provider,
		event.TokenID,
		event.Detail,
		event.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit event")
	}
	return nil
}

// List returns events ordered by created_at descending with pagination.
func (p *PostgreSQLAuditEventRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]auditDomain.Event, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, event_type, outcome, provider, token_id, detail, created_at
			  FROM audit_events ORDER BY created_at DESC LIMIT $1 OFFSET $2`

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
			eventType string
			outcome   string
			tokenID   uuid.NullUUID
		)
		err := rows.Scan(
			&event.ID,
			&eventType,
			&outcome,
			&event.Provider,
			&tokenID,
			&event.Detail,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit event")
		}
		event.Type = auditDomain.EventType(eventType)
		event.Outcome = auditDomain.Outcome(outcome)
		if tokenID.Valid {
			id := tokenID.UUID
			event.TokenID = &id
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// DeleteOlderThan removes events created before cutoff, or only counts them when
// dryRun is set. Returns the number of affected events.
func (p *PostgreSQLAuditEventRepository) DeleteOlderThan(
	ctx context.Context,
	cutoff time.Time,
	dryRun bool,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	if dryRun {
		var count int64
		query := `SELECT COUNT(*) FROM audit_events WHERE created_at < $1`
		if err := querier.QueryRowContext(ctx, query, cutoff).Scan(&count); err != nil {
			return 0, apperrors.Wrap(err, "failed to count audit events")
		}
		return count, nil
	}

	query := `DELETE FROM audit_events WHERE created_at < $1`
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

// NewPostgreSQLAuditEventRepository creates a new PostgreSQL audit event repository.
func NewPostgreSQLAuditEventRepository(db *sql.DB) *PostgreSQLAuditEventRepository {
	return &PostgreSQLAuditEventRepository{db: db}
}
