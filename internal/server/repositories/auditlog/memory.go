package auditlog

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/signalrelay/internal/server/models"
)

// MemoryRepository keeps entries in insertion order. Timestamps are
// clamped so they never go backwards.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []models.AuditLogEntry
	nextID  int64
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (r *MemoryRepository) Append(_ context.Context, e *models.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = r.now().UTC()
	}
	if n := len(r.entries); n > 0 && e.Timestamp.Before(r.entries[n-1].Timestamp) {
		e.Timestamp = r.entries[n-1].Timestamp
	}
	r.nextID++
	e.ID = r.nextID
	r.entries = append(r.entries, *e)
	return nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID string, limit int) ([]models.AuditLogEntry, error) {
	return r.newestFirst(limit, func(e *models.AuditLogEntry) bool { return e.UserID == userID }), nil
}

func (r *MemoryRepository) ListAll(_ context.Context, limit int) ([]models.AuditLogEntry, error) {
	return r.newestFirst(limit, func(*models.AuditLogEntry) bool { return true }), nil
}

func (r *MemoryRepository) newestFirst(limit int, match func(e *models.AuditLogEntry) bool) []models.AuditLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AuditLogEntry, 0)
	for i := len(r.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if match(&r.entries[i]) {
			out = append(out, r.entries[i])
		}
	}
	return out
}
