// Package repository implements root key persistence.
//
// Root keys are stored as KMS ciphertext only; plaintext material never reaches the
// database. A purge clears the ciphertext but keeps the row so the epoch's activity
// window survives restarts and tokens it signed can still be attributed to it.
//
// # Database Support
//
// Each repository has two SQL implementations plus an in-memory one:
//   - PostgreSQL: native UUID type and BYTEA for ciphertext
//   - MySQL: BINARY(16) for UUIDs and BLOB for ciphertext
//   - Memory: process-local storage for development and tests
//
// # Transaction Support
//
// SQL repositories use database.GetTx(), so a rotation can insert the new key and
// deprecate the previous one atomically:
//
//	err := txManager.WithTx(ctx, func(txCtx context.Context) error {
//	    if err := repo.Create(txCtx, newKey); err != nil {
//	        return err
//	    }
//	    return repo.MarkDeprecated(txCtx, previous.ID, now, now.Add(overlap))
//	})
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/dominion/internal/database"
	apperrors "github.com/allisson/dominion/internal/errors"
	keysDomain "github.com/allisson/dominion/internal/keys/domain"
)

// PostgreSQLRootKeyRepository implements root key persistence for PostgreSQL.
//
// Database schema requirements:
//   - id: UUID PRIMARY KEY
//   - epoch: BIGINT UNIQUE
//   - encrypted_key: BYTEA (KMS ciphertext, empty once purged)
//   - created_at, deprecated_at, overlap_ends_at, purged_at: TIMESTAMPTZ
type PostgreSQLRootKeyRepository struct {
	db *sql.DB
}

// Create inserts a new root key.
func (p *PostgreSQLRootKeyRepository) Create(ctx context.Context, key *keysDomain.RootKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO root_keys (id, epoch, encrypted_key, created_at, deprecated_at, overlap_ends_at, purged_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		int64(key.Epoch),
		encryptedOrEmpty(key.EncryptedKey),
		key.CreatedAt,
		key.DeprecatedAt,
		key.OverlapEndsAt,
		key.PurgedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create root key")
	}
	return nil
}

// MarkDeprecated records the demotion of a key and the end of its overlap window.
func (p *PostgreSQLRootKeyRepository) MarkDeprecated(
	ctx context.Context,
	id uuid.UUID,
	deprecatedAt, overlapEndsAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE root_keys SET deprecated_at = $1, overlap_ends_at = $2 WHERE id = $3 AND purged_at IS NULL`

	result, err := querier.ExecContext(ctx, query, deprecatedAt, overlapEndsAt, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to deprecate root key")
	}
	return requireOneRow(result)
}

// MarkPurged records the purge and discards the stored ciphertext.
func (p *PostgreSQLRootKeyRepository) MarkPurged(ctx context.Context, id uuid.UUID, purgedAt time.Time) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE root_keys SET purged_at = $1, encrypted_key = $2 WHERE id = $3`

	result, err := querier.ExecContext(ctx, query, purgedAt, []byte{}, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to purge root key")
	}
	return requireOneRow(result)
}

// List returns every stored key ordered by epoch ascending.
func (p *PostgreSQLRootKeyRepository) List(ctx context.Context) ([]*keysDomain.RootKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, epoch, encrypted_key, created_at, deprecated_at, overlap_ends_at, purged_at
			  FROM root_keys ORDER BY epoch ASC`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list root keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	var keys []*keysDomain.RootKey
	for rows.Next() {
		var (
			key   keysDomain.RootKey
			epoch int64
		)
		err := rows.Scan(
			&key.ID,
			&epoch,
			&key.EncryptedKey,
			&key.CreatedAt,
			&key.DeprecatedAt,
			&key.OverlapEndsAt,
			&key.PurgedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan root key")
		}
		key.Epoch = uint64(epoch)
		keys = append(keys, &key)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// NewPostgreSQLRootKeyRepository creates a new PostgreSQL root key repository.
func NewPostgreSQLRootKeyRepository(db *sql.DB) *PostgreSQLRootKeyRepository {
	return &PostgreSQLRootKeyRepository{db: db}
}

func encryptedOrEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func requireOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return keysDomain.ErrRootKeyNotFound
	}
	return nil
}
