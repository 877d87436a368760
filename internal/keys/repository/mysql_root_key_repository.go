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

// MySQLRootKeyRepository implements root key persistence for MySQL. UUIDs are stored
// as BINARY(16) and ciphertext as BLOB.
type MySQLRootKeyRepository struct {
	db *sql.DB
}

// Create inserts a new root key.
func (m *MySQLRootKeyRepository) Create(ctx context.Context, key *keysDomain.RootKey) error {
	querier := database.GetTx(ctx, m.db)

	id, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal root key id")
	}

	query := `INSERT INTO root_keys (id, epoch, encrypted_key, created_at, deprecated_at, overlap_ends_at, purged_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		key.Epoch,
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
func (m *MySQLRootKeyRepository) MarkDeprecated(
	ctx context.Context,
	id uuid.UUID,
	deprecatedAt, overlapEndsAt time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	binaryID, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal root key id")
	}

	query := `UPDATE root_keys SET deprecated_at = ?, overlap_ends_at = ? WHERE id = ? AND purged_at IS NULL`

	result, err := querier.ExecContext(ctx, query, deprecatedAt, overlapEndsAt, binaryID)
	if err != nil {
		return apperrors.Wrap(err, "failed to deprecate root key")
	}
	return requireOneRow(result)
}

// MarkPurged records the purge and discards the stored ciphertext.
func (m *MySQLRootKeyRepository) MarkPurged(ctx context.Context, id uuid.UUID, purgedAt time.Time) error {
	querier := database.GetTx(ctx, m.db)

	binaryID, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal root key id")
	}

	query := `UPDATE root_keys SET purged_at = ?, encrypted_key = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, purgedAt, []byte{}, binaryID)
	if err != nil {
		return apperrors.Wrap(err, "failed to purge root key")
	}
	return requireOneRow(result)
}

// List returns every stored key ordered by epoch ascending.
func (m *MySQLRootKeyRepository) List(ctx context.Context) ([]*keysDomain.RootKey, error) {
	querier := database.GetTx(ctx, m.db)

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
			key keysDomain.RootKey
			id  []byte
		)
		err := rows.Scan(
			&id,
			&key.Epoch,
			&key.EncryptedKey,
			&key.CreatedAt,
			&key.DeprecatedAt,
			&key.OverlapEndsAt,
			&key.PurgedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan root key")
		}
		if err := key.ID.UnmarshalBinary(id); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal root key id")
		}
		keys = append(keys, &key)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// NewMySQLRootKeyRepository creates a new MySQL root key repository.
func NewMySQLRootKeyRepository(db *sql.DB) *MySQLRootKeyRepository {
	return &MySQLRootKeyRepository{db: db}
}
