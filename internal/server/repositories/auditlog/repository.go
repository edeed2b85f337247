// Package auditlog stores the append-only audit trail. Entries are never
// updated or deleted, and they survive deletion of the account they belong
// to.
package auditlog

import (
	"context"

	"github.com/dmitrijs2005/signalrelay/internal/server/models"
)

type Repository interface {
	// Append stores e and fills in its ID and, when zero, its Timestamp.
	Append(ctx context.Context, e *models.AuditLogEntry) error

	// ListByUser returns the newest entries of userID first. limit <= 0
	// means no limit.
	ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditLogEntry, error)

	// ListAll returns the newest entries first across all users.
	ListAll(ctx context.Context, limit int) ([]models.AuditLogEntry, error)
}
