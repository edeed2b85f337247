package accounts

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

const accountColumns = `id, username, email, password_hash, email_verified,
		email_verification_token, password_reset_token, password_reset_expires_at,
		is_admin, webhook_url, webhook_token, webhook_active, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a             models.Account
		verifyToken   sql.NullString
		resetToken    sql.NullString
		resetExpires  sql.NullTime
		webhookURL    sql.NullString
		webhookToken  sql.NullString
		webhookActive sql.NullBool
	)

	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.EmailVerified,
		&verifyToken, &resetToken, &resetExpires,
		&a.IsAdmin, &webhookURL, &webhookToken, &webhookActive, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	a.EmailVerificationToken = verifyToken.String
	a.PasswordResetToken = resetToken.String
	if resetExpires.Valid {
		t := resetExpires.Time
		a.PasswordResetExpiresAt = &t
	}
	if webhookURL.Valid {
		a.Webhook = &models.WebhookConfig{
			URL:      webhookURL.String,
			Token:    webhookToken.String,
			IsActive: !webhookActive.Valid || webhookActive.Bool,
		}
	}
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) error {
	query :=
		`INSERT INTO accounts (id, username, email, password_hash, email_verified,
		 email_verification_token, is_admin)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.Username, a.Email, a.PasswordHash, a.EmailVerified,
		nullString(a.EmailVerificationToken), a.IsAdmin).Scan(&a.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrDuplicateIdentity
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getBy(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.getBy(ctx, "username = $1", username)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getBy(ctx, "email = $1", email)
}

func (r *PostgresRepository) GetByVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	return r.getBy(ctx, "email_verification_token = $1", token)
}

func (r *PostgresRepository) GetByResetToken(ctx context.Context, token string) (*models.Account, error) {
	return r.getBy(ctx, "password_reset_token = $1", token)
}

func (r *PostgresRepository) GetAdmin(ctx context.Context) (*models.Account, error) {
	return r.getBy(ctx, "is_admin = $1", true)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at, username`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var list []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}

// exec runs a single-row update and maps "nothing matched" to ErrorNotFound.
func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if err := dbx.ExpectOneRow(res); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ConsumeVerificationToken(ctx context.Context, id, token string) error {
	query :=
		`UPDATE accounts SET email_verified = TRUE, email_verification_token = NULL
		 WHERE id = $1 AND email_verification_token = $2 AND email_verified = FALSE
		 `
	return r.exec(ctx, query, id, token)
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	query :=
		`UPDATE accounts SET password_reset_token = $2, password_reset_expires_at = $3
		 WHERE id = $1
		 `
	return r.exec(ctx, query, id, token, expiresAt)
}

func (r *PostgresRepository) ClearResetToken(ctx context.Context, id, token string) error {
	query :=
		`UPDATE accounts SET password_reset_token = NULL, password_reset_expires_at = NULL
		 WHERE id = $1 AND password_reset_token = $2
		 `
	return r.exec(ctx, query, id, token)
}

func (r *PostgresRepository) CompletePasswordReset(ctx context.Context, id, token, passwordHash string) error {
	query :=
		`UPDATE accounts SET password_hash = $3,
		 password_reset_token = NULL, password_reset_expires_at = NULL
		 WHERE id = $1 AND password_reset_token = $2
		 `
	return r.exec(ctx, query, id, token, passwordHash)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE accounts SET password_hash = $2 WHERE id = $1`
	return r.exec(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) ToggleActive(ctx context.Context, id string) (bool, error) {
	query :=
		`UPDATE accounts SET email_verified = NOT email_verified, email_verification_token = NULL
		 WHERE id = $1 AND is_admin = FALSE
		 RETURNING email_verified
		 `

	var active bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, common.ErrorNotFound
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return active, nil
}

func (r *PostgresRepository) SetWebhookConfig(ctx context.Context, id string, cfg *models.WebhookConfig) error {
	query :=
		`UPDATE accounts SET webhook_url = $2, webhook_token = $3, webhook_active = $4
		 WHERE id = $1
		 `
	if cfg == nil {
		return r.exec(ctx, query, id, nil, nil, nil)
	}
	return r.exec(ctx, query, id, cfg.URL, nullString(cfg.Token), cfg.IsActive)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
}
