package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/signalrelay/internal/common"
	"github.com/dmitrijs2005/signalrelay/internal/dbx"
	"github.com/dmitrijs2005/signalrelay/internal/server/models"
)

// PostgresRepository needs the *sql.DB itself, not a DBTX, because Rotate
// opens its own transaction.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const insertSession = `
		INSERT INTO sessions (user_id, token, expires_at)
		VALUES ($1, $2, $3)
	`

func (r *PostgresRepository) Create(ctx context.Context, userID, token string, validity time.Duration) error {
	if _, err := r.db.ExecContext(ctx, insertSession, userID, token, time.Now().Add(validity)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.Session, error) {
	query := `
		SELECT user_id, expires_at, created_at
		FROM sessions
		WHERE token = $1
	`
	s := &models.Session{Token: token}
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&s.UserID, &s.ExpiresAt, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Rotate(ctx context.Context, oldToken, newToken, userID string, validity time.Duration) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1 AND user_id = $2`, oldToken, userID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if err := dbx.ExpectOneRow(res); err != nil {
			if errors.Is(err, dbx.ErrNoRowsAffected) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertSession, userID, newToken, time.Now().Add(validity)); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
