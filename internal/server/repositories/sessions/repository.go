// Package sessions stores refresh tokens issued at login.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/signalrelay/internal/server/models"
)

type Repository interface {
	// Create stores token for userID, expiring after validity.
	Create(ctx context.Context, userID, token string, validity time.Duration) error

	// Find returns common.ErrorNotFound for unknown tokens.
	Find(ctx context.Context, token string) (*models.Session, error)

	// Rotate atomically replaces oldToken with newToken. It returns
	// common.ErrorNotFound when oldToken was already used or revoked.
	Rotate(ctx context.Context, oldToken, newToken, userID string, validity time.Duration) error

	// DeleteByUser revokes every session of userID.
	DeleteByUser(ctx context.Context, userID string) error
}
