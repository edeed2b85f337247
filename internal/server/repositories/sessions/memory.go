package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/signalrelay/internal/common"
	"github.com/dmitrijs2005/signalrelay/internal/server/models"
)

type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]models.Session), now: time.Now}
}

func (r *MemoryRepository) Create(_ context.Context, userID, token string, validity time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(userID, token, validity)
	return nil
}

func (r *MemoryRepository) put(userID, token string, validity time.Duration) {
	now := r.now()
	r.sessions[token] = models.Session{Token: token, UserID: userID, ExpiresAt: now.Add(validity), CreatedAt: now}
}

func (r *MemoryRepository) Find(_ context.Context, token string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) Rotate(_ context.Context, oldToken, newToken, userID string, validity time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[oldToken]
	if !ok || s.UserID != userID {
		return common.ErrorNotFound
	}
	delete(r.sessions, oldToken)
	r.put(userID, newToken, validity)
	return nil
}

func (r *MemoryRepository) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for token, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, token)
		}
	}
	return nil
}
