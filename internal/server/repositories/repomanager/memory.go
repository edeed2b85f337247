package repomanager

import (
	"context"

	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/auditlog"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/sessions"
)

// MemoryRepositoryManager keeps everything in process memory. State is
// lost on restart.
type MemoryRepositoryManager struct {
	accounts *accounts.MemoryRepository
	auditLog *auditlog.MemoryRepository
	sessions *sessions.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		accounts: accounts.NewMemoryRepository(),
		auditLog: auditlog.NewMemoryRepository(),
		sessions: sessions.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error {
	return nil
}

func (m *MemoryRepositoryManager) Accounts() accounts.Repository {
	return m.accounts
}

func (m *MemoryRepositoryManager) AuditLog() auditlog.Repository {
	return m.auditLog
}

func (m *MemoryRepositoryManager) Sessions() sessions.Repository {
	return m.sessions
}

func (m *MemoryRepositoryManager) Close() error {
	return nil
}
