package accounts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/signalrelay/internal/common"
	"github.com/dmitrijs2005/signalrelay/internal/server/models"
)

// MemoryRepository keeps accounts in process memory. One mutex serializes
// all writes, which gives the same single-use guarantees as the
// conditional updates of the PostgreSQL implementation.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[string]*models.Account),
		now:      time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Username == a.Username || existing.Email == a.Email {
			return common.ErrDuplicateIdentity
		}
		if a.IsAdmin && existing.IsAdmin {
			return common.ErrDuplicateIdentity
		}
	}
	if _, ok := r.accounts[a.ID]; ok {
		return common.ErrDuplicateIdentity
	}

	a.CreatedAt = r.now().UTC()
	r.accounts[a.ID] = a.Clone()
	return nil
}

func (r *MemoryRepository) find(match func(a *models.Account) bool) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if match(a) {
			return a.Clone(), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return a.Clone(), nil
}

func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.Username == username })
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.Email == email })
}

func (r *MemoryRepository) GetByVerificationToken(_ context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	return r.find(func(a *models.Account) bool { return a.EmailVerificationToken == token })
}

func (r *MemoryRepository) GetByResetToken(_ context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	return r.find(func(a *models.Account) bool { return a.PasswordResetToken == token })
}

func (r *MemoryRepository) GetAdmin(_ context.Context) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.IsAdmin })
}

func (r *MemoryRepository) List(_ context.Context) ([]*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*models.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		list = append(list, a.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].Username < list[j].Username
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

// update applies fn to the stored account under the write lock. fn reports
// whether its precondition held; false maps to ErrorNotFound.
func (r *MemoryRepository) update(id string, fn func(a *models.Account) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok || !fn(a) {
		return common.ErrorNotFound
	}
	return nil
}

func (r *MemoryRepository) ConsumeVerificationToken(_ context.Context, id, token string) error {
	return r.update(id, func(a *models.Account) bool {
		if a.EmailVerified || token == "" || a.EmailVerificationToken != token {
			return false
		}
		a.EmailVerified = true
		a.EmailVerificationToken = ""
		return true
	})
}

func (r *MemoryRepository) SetResetToken(_ context.Context, id, token string, expiresAt time.Time) error {
	return r.update(id, func(a *models.Account) bool {
		a.PasswordResetToken = token
		a.PasswordResetExpiresAt = &expiresAt
		return true
	})
}

func (r *MemoryRepository) ClearResetToken(_ context.Context, id, token string) error {
	return r.update(id, func(a *models.Account) bool {
		if token == "" || a.PasswordResetToken != token {
			return false
		}
		a.PasswordResetToken = ""
		a.PasswordResetExpiresAt = nil
		return true
	})
}

func (r *MemoryRepository) CompletePasswordReset(_ context.Context, id, token, passwordHash string) error {
	return r.update(id, func(a *models.Account) bool {
		if token == "" || a.PasswordResetToken != token {
			return false
		}
		a.PasswordHash = passwordHash
		a.PasswordResetToken = ""
		a.PasswordResetExpiresAt = nil
		return true
	})
}

func (r *MemoryRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return r.update(id, func(a *models.Account) bool {
		a.PasswordHash = passwordHash
		return true
	})
}

func (r *MemoryRepository) ToggleActive(_ context.Context, id string) (bool, error) {
	var active bool
	err := r.update(id, func(a *models.Account) bool {
		if a.IsAdmin {
			return false
		}
		a.EmailVerified = !a.EmailVerified
		a.EmailVerificationToken = ""
		active = a.EmailVerified
		return true
	})
	return active, err
}

func (r *MemoryRepository) SetWebhookConfig(_ context.Context, id string, cfg *models.WebhookConfig) error {
	return r.update(id, func(a *models.Account) bool {
		if cfg == nil {
			a.Webhook = nil
			return true
		}
		w := *cfg
		a.Webhook = &w
		return true
	})
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.accounts, id)
	return nil
}
