package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestWithTx(t *testing.T) {
	t.Run("Success_Commit", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE root_keys").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
			querier := GetTx(ctx, db)
			assert.IsType(t, &sql.Tx{}, querier)
			_, err := querier.ExecContext(ctx, "UPDATE root_keys SET purged_at = NOW()")
			return err
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_RollbackOnFailure", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
			return assert.AnError
		})

		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_RollbackFails", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(sql.ErrConnDone)

		err := NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
			return assert.AnError
		})

		assert.ErrorIs(t, err, assert.AnError)
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})

	t.Run("Error_BeginFails", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin().WillReturnError(assert.AnError)

		called := false
		err := NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
			called = true
			return nil
		})

		assert.ErrorIs(t, err, assert.AnError)
		assert.False(t, called)
	})

	t.Run("Error_CommitFails", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(assert.AnError)

		err := NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
			return nil
		})

		assert.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "failed to commit transaction")
	})

	t.Run("Success_NestedReusesOuterTx", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		txManager := NewTxManager(db)
		err := txManager.WithTx(context.Background(), func(outer context.Context) error {
			return txManager.WithTx(outer, func(inner context.Context) error {
				assert.Same(t, GetTx(outer, db), GetTx(inner, db))
				return nil
			})
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetTx_WithoutTransaction(t *testing.T) {
	db, _ := newMockDB(t)

	assert.Same(t, db, GetTx(context.Background(), db))
}
