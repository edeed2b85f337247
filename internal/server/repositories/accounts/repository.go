// Package accounts declares the storage contract for accounts and provides
// PostgreSQL and in-memory implementations.
//
// Token-consuming methods are conditional on the token still being present,
// so a verification or reset token can be used at most once even when two
// requests race. They return common.ErrorNotFound when the condition fails.
package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/signalrelay/internal/server/models"
)

type Repository interface {
	// Create stores a new account. It returns common.ErrDuplicateIdentity
	// when the username or email is taken.
	Create(ctx context.Context, a *models.Account) error

	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.Account, error)
	GetByResetToken(ctx context.Context, token string) (*models.Account, error)
	GetAdmin(ctx context.Context) (*models.Account, error)

	// List returns all accounts ordered by creation time.
	List(ctx context.Context) ([]*models.Account, error)

	// ConsumeVerificationToken marks the account verified and clears token.
	ConsumeVerificationToken(ctx context.Context, id, token string) error

	// SetResetToken overwrites any pending reset token.
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error

	// ClearResetToken drops token and its expiry if token is still pending.
	ClearResetToken(ctx context.Context, id, token string) error

	// CompletePasswordReset replaces the password and clears token.
	CompletePasswordReset(ctx context.Context, id, token, passwordHash string) error

	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// ToggleActive flips EmailVerified on a non-admin account and returns
	// the new value. Pending verification tokens are cleared.
	ToggleActive(ctx context.Context, id string) (bool, error)

	// SetWebhookConfig replaces the webhook configuration wholesale.
	SetWebhookConfig(ctx context.Context, id string, cfg *models.WebhookConfig) error

	Delete(ctx context.Context, id string) error
}
