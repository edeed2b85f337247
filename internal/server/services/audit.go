// Package services contains the business logic of the relay server.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/dmitrijs2005/signalrelay/internal/common"
	"github.com/dmitrijs2005/signalrelay/internal/logging"
	"github.com/dmitrijs2005/signalrelay/internal/server/models"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/repomanager"
)

// AuditService appends to and reads the audit trail.
type AuditService struct {
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	now         func() time.Time
}

func NewAuditService(m repomanager.RepositoryManager, logger logging.Logger) *AuditService {
	return &AuditService{
		repomanager: m,
		logger:      logger.With("module", "audit"),
		now:         time.Now,
	}
}

// Record appends an entry. A storage failure is logged and never returned:
// the outcome of the operation being recorded is already decided.
func (s *AuditService) Record(ctx context.Context, userID, action, details string) {
	e := &models.AuditLogEntry{
		UserID:    userID,
		Timestamp: s.now(),
		Action:    action,
		Details:   common.Truncate(details, models.MaxDetailsLength),
	}
	if err := s.repomanager.AuditLog().Append(ctx, e); err != nil {
		s.logger.Warn(ctx, "audit append failed", "user_id", userID, "action", action, "error", err)
	}
}

func (s *AuditService) UserLogs(ctx context.Context, userID string, limit int) ([]models.AuditLogEntry, error) {
	logs, err := s.repomanager.AuditLog().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list logs: %v", common.ErrorInternal, err)
	}
	return logs, nil
}

func (s *AuditService) AllLogs(ctx context.Context, limit int) ([]models.AuditLogEntry, error) {
	logs, err := s.repomanager.AuditLog().ListAll(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list logs: %v", common.ErrorInternal, err)
	}
	return logs, nil
}

// LogsFor returns the logs actorID may see for userID. An empty userID
// means the actor's own logs, "*" means all logs and needs admin rights,
// and so does any other user's id.
func (s *AuditService) LogsFor(ctx context.Context, actorID, userID string, limit int) ([]models.AuditLogEntry, error) {
	if userID == "" || userID == actorID {
		return s.UserLogs(ctx, actorID, limit)
	}
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if userID == "*" {
		return s.AllLogs(ctx, limit)
	}
	return s.UserLogs(ctx, userID, limit)
}

// AppendCustom stores a caller-supplied entry for userID. Users may only
// write to their own trail; admins may write to any, including the system
// trail.
func (s *AuditService) AppendCustom(ctx context.Context, actorID, userID, action, details string) (*models.AuditLogEntry, error) {
	userID = strings.TrimSpace(userID)
	action = strings.TrimSpace(action)
	if userID == "" || action == "" || strings.TrimSpace(details) == "" {
		return nil, common.ErrMissingParameter
	}

	err := validation.Validate(action, validation.RuneLength(1, models.MaxActionLength))
	if err == nil {
		err = validation.Validate(details, validation.RuneLength(1, models.MaxDetailsLength))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	if userID != actorID {
		if err := s.requireAdmin(ctx, actorID); err != nil {
			return nil, err
		}
	}

	e := &models.AuditLogEntry{UserID: userID, Timestamp: s.now(), Action: action, Details: details}
	if err := s.repomanager.AuditLog().Append(ctx, e); err != nil {
		return nil, fmt.Errorf("%w: append log: %v", common.ErrorInternal, err)
	}
	return e, nil
}

func (s *AuditService) requireAdmin(ctx context.Context, actorID string) error {
	return requireAdmin(ctx, s.repomanager, actorID)
}

// requireAdmin returns common.ErrForbidden unless id names an admin.
func requireAdmin(ctx context.Context, m repomanager.RepositoryManager, id string) error {
	acc, err := m.Accounts().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrForbidden
		}
		return fmt.Errorf("%w: load account: %v", common.ErrorInternal, err)
	}
	if !acc.IsAdmin {
		return common.ErrForbidden
	}
	return nil
}
