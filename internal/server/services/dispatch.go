package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/signalrelay/internal/common"
	"github.com/dmitrijs2005/signalrelay/internal/logging"
	"github.com/dmitrijs2005/signalrelay/internal/netx"
	"github.com/dmitrijs2005/signalrelay/internal/server/config"
	"github.com/dmitrijs2005/signalrelay/internal/server/metrics"
	"github.com/dmitrijs2005/signalrelay/internal/server/models"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/repomanager"
)

const (
	// timestampLayout is ISO-8601 in UTC with milliseconds.
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"

	// maxLoggedBody bounds upstream bodies in audit entries and probe results.
	maxLoggedBody = 500

	probeUserAgent = "TradingSignal-Webhook-Test/1.0"
	tokenHeader    = "X-Token"
)

// DispatchError is a failed delivery. It matches its Kind with errors.Is
// and keeps the transport cause in Err.
type DispatchError struct {
	Kind        error
	StatusCode  int
	Unreachable bool
	Err         error
}

func (e *DispatchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%v: %d", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

func (e *DispatchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// DispatchService delivers signals to configured webhooks and probes
// arbitrary targets. Each call is exactly one attempt.
type DispatchService struct {
	repomanager  repomanager.RepositoryManager
	audit        *AuditService
	logger       logging.Logger
	client       netx.Doer
	timeout      time.Duration
	probeTimeout time.Duration
	now          func() time.Time
}

func NewDispatchService(m repomanager.RepositoryManager, audit *AuditService, client netx.Doer,
	logger logging.Logger, cfg *config.Config) *DispatchService {
	return &DispatchService{
		repomanager:  m,
		audit:        audit,
		logger:       logger.With("module", "dispatch"),
		client:       client,
		timeout:      cfg.DispatchTimeout,
		probeTimeout: cfg.ProbeTimeout,
		now:          time.Now,
	}
}

func (s *DispatchService) envelope(symbol, action string, price float64) *models.SignalEnvelope {
	return &models.SignalEnvelope{
		MessageType: models.SignalMessageType,
		Data: models.SignalData{
			Symbol:    symbol,
			Price:     price,
			Timestamp: s.now().UTC().Format(timestampLayout),
			Action:    action,
		},
	}
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// DispatchSignal posts one signal to the user's webhook and records the
// outcome in the audit trail. Parameter errors are reported before any
// lookup; every later failure is logged.
func (s *DispatchService) DispatchSignal(ctx context.Context, userID, symbol, action string, price float64) (*models.SignalEnvelope, error) {
	symbol = strings.TrimSpace(symbol)
	action = strings.TrimSpace(action)
	if userID == "" || symbol == "" || action == "" || price == 0 {
		return nil, common.ErrMissingParameter
	}

	env := s.envelope(symbol, action, price)

	acc, err := s.repomanager.Accounts().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: load account: %v", common.ErrorInternal, err)
	}

	fail := func(kind error, details string) error {
		s.audit.Record(ctx, userID, models.ActionSignalFailed, details)
		metrics.DispatchTotal.WithLabelValues(outcomeLabel(kind)).Inc()
		return kind
	}

	switch {
	case !acc.EmailVerified && !acc.IsAdmin:
		return nil, fail(common.ErrUnverifiedEmail, "账户未验证或已被禁用")
	case acc.Webhook == nil:
		return nil, fail(common.ErrNoConfig, "用户未配置webhook")
	case !acc.Webhook.IsActive:
		return nil, fail(common.ErrConfigDisabled, "Webhook配置已禁用")
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: encode envelope: %v", common.ErrorInternal, err)
	}
	headers := map[string]string{}
	if acc.Webhook.Token != "" {
		headers[tokenHeader] = acc.Webhook.Token
	}

	target := acc.Webhook.URL
	summary := fmt.Sprintf("标的: %s, 动作: %s, 价格: %s", symbol, action, formatPrice(price))

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	resp, err := netx.PostJSON(callCtx, s.client, target, headers, body)
	if err != nil {
		derr := &DispatchError{Kind: common.ErrTransportError, Unreachable: netx.IsUnreachable(err), Err: err}
		details := fmt.Sprintf("发送异常: %v, %s", err, summary)
		if netx.IsTimeout(err) {
			derr.Kind = common.ErrTransportTimeout
			details = fmt.Sprintf("发送超时（%d秒）: %v, %s", int(s.timeout.Seconds()), err, summary)
		}
		s.logger.Warn(ctx, "webhook delivery failed", "user_id", userID, "url", target, "error", err)
		s.audit.Record(ctx, userID, models.ActionSignalFailed, details)
		metrics.ObserveDispatch("signal", outcomeLabel(derr.Kind), started)
		return nil, derr
	}

	if !resp.OK() {
		text := common.Truncate(string(resp.Body), maxLoggedBody)
		s.logger.Warn(ctx, "webhook returned non-success", "user_id", userID, "url", target, "status", resp.StatusCode)
		s.audit.Record(ctx, userID, models.ActionSignalFailed,
			fmt.Sprintf("发送到 %s 失败: %d - %s, 信号: %s", target, resp.StatusCode, text, summary))
		metrics.ObserveDispatch("signal", outcomeLabel(common.ErrUpstreamNonSuccess), started)
		return nil, &DispatchError{Kind: common.ErrUpstreamNonSuccess, StatusCode: resp.StatusCode}
	}

	s.logger.Info(ctx, "signal delivered", "user_id", userID, "url", target, "status", resp.StatusCode)
	s.audit.Record(ctx, userID, models.ActionSignalSent, fmt.Sprintf("成功发送到 %s - %s", target, summary))
	metrics.ObserveDispatch("signal", "success", started)
	return env, nil
}

// TestWebhook posts a fixed sample signal to rawURL and returns what came
// back. It reads no configuration and writes no audit entry.
func (s *DispatchService) TestWebhook(ctx context.Context, rawURL, token string) (*models.ProbeResult, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, common.ErrMissingParameter
	}
	if err := ValidateWebhookURL(rawURL); err != nil {
		return nil, err
	}

	body, err := json.Marshal(s.envelope("MES", "BUY", 168.88))
	if err != nil {
		return nil, fmt.Errorf("%w: encode envelope: %v", common.ErrorInternal, err)
	}
	headers := map[string]string{"User-Agent": probeUserAgent}
	if token = strings.TrimSpace(token); token != "" {
		headers[tokenHeader] = token
	}

	callCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	started := time.Now()
	resp, err := netx.PostJSON(callCtx, s.client, rawURL, headers, body)
	if err != nil {
		derr := &DispatchError{Kind: common.ErrTransportError, Unreachable: netx.IsUnreachable(err), Err: err}
		if netx.IsTimeout(err) {
			derr.Kind = common.ErrTransportTimeout
		}
		metrics.ObserveDispatch("probe", outcomeLabel(derr.Kind), started)
		s.logger.Debug(ctx, "webhook probe failed", "url", rawURL, "error", err)
		return nil, derr
	}
	metrics.ObserveDispatch("probe", "success", started)

	return &models.ProbeResult{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    resp.Header,
		Body:       common.Truncate(string(resp.Body), maxLoggedBody),
	}, nil
}

// statusText strips the code from "404 Not Found".
func statusText(resp *netx.Response) string {
	if t, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); ok {
		return t
	}
	return http.StatusText(resp.StatusCode)
}

func outcomeLabel(kind error) string {
	switch {
	case errors.Is(kind, common.ErrTransportTimeout):
		return "timeout"
	case errors.Is(kind, common.ErrTransportError):
		return "transport_error"
	case errors.Is(kind, common.ErrUpstreamNonSuccess):
		return "upstream_error"
	case errors.Is(kind, common.ErrNoConfig):
		return "no_config"
	case errors.Is(kind, common.ErrConfigDisabled):
		return "disabled"
	case errors.Is(kind, common.ErrUnverifiedEmail):
		return "unverified"
	default:
		return "error"
	}
}
