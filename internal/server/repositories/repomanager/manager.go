// Package repomanager selects the storage backend once at startup and vends
// its repositories. Services depend only on RepositoryManager.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/signalrelay/internal/server/config"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/auditlog"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/sessions"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Accounts() accounts.Repository
	AuditLog() auditlog.Repository
	Sessions() sessions.Repository
	Close() error
}

// New opens the backend named by cfg.Storage.
func New(ctx context.Context, cfg *config.Config) (RepositoryManager, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		return NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	case config.StorageMemory:
		return NewMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}
