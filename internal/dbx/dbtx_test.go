package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sessions (token TEXT PRIMARY KEY, user_id TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n))
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO sessions(token, user_id) VALUES ('t1', 'u1')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, db), "must commit on success")
}

func TestWithTx_RotationIsAtomic(t *testing.T) {
	db := setupDB(t)
	_, err := db.Exec(`INSERT INTO sessions(token, user_id) VALUES ('old', 'u1')`)
	require.NoError(t, err)

	err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE token = 'old'`); err != nil {
			return err
		}
		// duplicate primary key aborts the rotation
		_, err := tx.ExecContext(ctx, `INSERT INTO sessions(token, user_id) VALUES ('x', 'u1'), ('x', 'u1')`)
		return err
	})
	require.Error(t, err)

	var token string
	require.NoError(t, db.QueryRow(`SELECT token FROM sessions`).Scan(&token))
	assert.Equal(t, "old", token, "old session must survive a failed rotation")
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO sessions(token, user_id) VALUES ('t2', 'u1')`)
		require.NoError(t, e)
		return errors.New("boom") // должно привести к ROLLBACK
	})
	require.Error(t, err)

	require.Equal(t, 0, countRows(t, db), "must rollback when fn returns error")
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.Equal(t, 0, countRows(t, db), "must rollback on panic")
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO sessions(token, user_id) VALUES ('t3', 'u1')`)
		require.NoError(t, e)
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close()) // ломаем соединение

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err, "begin should fail when DB is closed")
}

func TestExpectOneRow(t *testing.T) {
	db := setupDB(t)

	res, err := db.Exec(`DELETE FROM sessions WHERE token = 'missing'`)
	require.NoError(t, err)
	assert.ErrorIs(t, ExpectOneRow(res), ErrNoRowsAffected)

	_, err = db.Exec(`INSERT INTO sessions(token, user_id) VALUES ('t4', 'u1')`)
	require.NoError(t, err)
	res, err = db.Exec(`DELETE FROM sessions WHERE token = 't4'`)
	require.NoError(t, err)
	assert.NoError(t, ExpectOneRow(res))
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "accounts_username_key"}

	assert.True(t, IsUniqueViolation(dup))
	assert.True(t, IsUniqueViolation(fmt.Errorf("db error: %w", dup)))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("23505")))
	assert.False(t, IsUniqueViolation(nil))
}
