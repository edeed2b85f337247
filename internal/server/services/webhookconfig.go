package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/dmitrijs2005/signalrelay/internal/common"
	"github.com/dmitrijs2005/signalrelay/internal/logging"
	"github.com/dmitrijs2005/signalrelay/internal/server/models"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/repomanager"
)

// WebhookConfigService stores each account's delivery target.
type WebhookConfigService struct {
	repomanager repomanager.RepositoryManager
	audit       *AuditService
	logger      logging.Logger
}

func NewWebhookConfigService(m repomanager.RepositoryManager, audit *AuditService, logger logging.Logger) *WebhookConfigService {
	return &WebhookConfigService{
		repomanager: m,
		audit:       audit,
		logger:      logger.With("module", "webhookconfig"),
	}
}

// ValidateWebhookURL accepts absolute http and https URLs with a host.
func ValidateWebhookURL(raw string) error {
	err := validation.Validate(raw,
		validation.Required,
		is.RequestURL,
		validation.By(func(value interface{}) error {
			u, err := url.Parse(value.(string))
			if err != nil {
				return err
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return errors.New("scheme must be http or https")
			}
			if u.Host == "" {
				return errors.New("host is required")
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidURL, err)
	}
	return nil
}

// SetConfig replaces the account's configuration wholesale.
func (s *WebhookConfigService) SetConfig(ctx context.Context, userID string, cfg models.WebhookConfig) error {
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Token = strings.TrimSpace(cfg.Token)

	repo := s.repomanager.Accounts()
	if _, err := repo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("%w: load account: %v", common.ErrorInternal, err)
	}

	if err := ValidateWebhookURL(cfg.URL); err != nil {
		return err
	}

	if err := repo.SetWebhookConfig(ctx, userID, &cfg); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		s.logger.Error(ctx, "store webhook config failed", "user_id", userID, "error", err)
		return fmt.Errorf("%w: store webhook config: %v", common.ErrorInternal, err)
	}

	s.audit.Record(ctx, userID, models.ActionWebhookUpdated, fmt.Sprintf("更新webhook配置: %s", cfg.URL))
	return nil
}

// GetConfig returns nil without error when the account has no
// configuration.
func (s *WebhookConfigService) GetConfig(ctx context.Context, userID string) (*models.WebhookConfig, error) {
	acc, err := s.repomanager.Accounts().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: load account: %v", common.ErrorInternal, err)
	}
	return acc.Webhook, nil
}
