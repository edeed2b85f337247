package auditlog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/signalrelay/internal/dbx"
	"github.com/dmitrijs2005/signalrelay/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.AuditLogEntry) error {
	query :=
		`INSERT INTO logs (user_id, timestamp, action, details)
		 VALUES ($1, COALESCE($2, now()), $3, $4)
		 RETURNING id, timestamp
		 `

	var ts sql.NullTime
	if !e.Timestamp.IsZero() {
		ts = sql.NullTime{Time: e.Timestamp, Valid: true}
	}

	if err := r.db.QueryRowContext(ctx, query, e.UserID, ts, e.Action, e.Details).Scan(&e.ID, &e.Timestamp); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditLogEntry, error) {
	query :=
		`SELECT id, user_id, timestamp, action, details FROM logs
		 WHERE user_id = $1
		 ORDER BY timestamp DESC, id DESC
		 LIMIT $2
		 `
	return r.list(ctx, query, userID, nullLimit(limit))
}

func (r *PostgresRepository) ListAll(ctx context.Context, limit int) ([]models.AuditLogEntry, error) {
	query :=
		`SELECT id, user_id, timestamp, action, details FROM logs
		 ORDER BY timestamp DESC, id DESC
		 LIMIT $1
		 `
	return r.list(ctx, query, nullLimit(limit))
}

// nullLimit maps "no limit" to NULL, which PostgreSQL treats as LIMIT ALL.
func nullLimit(limit int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(limit), Valid: limit > 0}
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]models.AuditLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	entries := make([]models.AuditLogEntry, 0)
	for rows.Next() {
		var e models.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Timestamp, &e.Action, &e.Details); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entries, nil
}
