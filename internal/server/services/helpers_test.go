package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/signalrelay/internal/logging"
	"github.com/dmitrijs2005/signalrelay/internal/server/config"
	"github.com/dmitrijs2005/signalrelay/internal/server/mailer"
	"github.com/dmitrijs2005/signalrelay/internal/server/models"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/auditlog"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/repomanager"
)

const testAdminPassword = "admin-secret"

type sentMail struct {
	to, subject, html string
}

type captureSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (c *captureSender) Send(_ context.Context, to, subject, html string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMail{to, subject, html})
	return nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		ResetTokenValidityDuration:   24 * time.Hour,
		DispatchTimeout:              2 * time.Second,
		ProbeTimeout:                 2 * time.Second,
		BaseURL:                      "http://relay.test",
	}
}

type testEnv struct {
	rm       repomanager.RepositoryManager
	audit    *AuditService
	accounts *AccountService
	webhooks *WebhookConfigService
	dispatch *DispatchService
	mail     *captureSender
	adminID  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, repomanager.NewMemoryRepositoryManager())
}

func newTestEnvWith(t *testing.T, rm repomanager.RepositoryManager) *testEnv {
	t.Helper()
	cfg := testConfig()
	log := testLogger()
	mail := &captureSender{}

	audit := NewAuditService(rm, log)
	env := &testEnv{
		rm:       rm,
		audit:    audit,
		accounts: NewAccountService(rm, audit, mailer.NewNotifier(mail, cfg.BaseURL), log, cfg),
		webhooks: NewWebhookConfigService(rm, audit, log),
		dispatch: NewDispatchService(rm, audit, http.DefaultClient, log, cfg),
		mail:     mail,
	}

	created, err := env.accounts.EnsureAdmin(context.Background(), "admin", "admin@system.local", testAdminPassword)
	require.NoError(t, err)
	require.True(t, created)
	admin, err := rm.Accounts().GetAdmin(context.Background())
	require.NoError(t, err)
	env.adminID = admin.ID
	return env
}

// verifiedUser registers and verifies an account and returns it.
func (e *testEnv) verifiedUser(t *testing.T, username string) *models.Account {
	t.Helper()
	ctx := context.Background()
	res, err := e.accounts.Register(ctx, username, username+"@x.com", "secret1")
	require.NoError(t, err)
	acc, err := e.accounts.VerifyEmail(ctx, res.Account.EmailVerificationToken)
	require.NoError(t, err)
	return acc
}

func (e *testEnv) logs(t *testing.T, userID string) []models.AuditLogEntry {
	t.Helper()
	logs, err := e.audit.UserLogs(context.Background(), userID, 0)
	require.NoError(t, err)
	return logs
}

// failingAuditManager breaks audit appends only.
type failingAuditManager struct {
	repomanager.RepositoryManager
}

type failingAuditLog struct {
	auditlog.Repository
}

func (failingAuditLog) Append(context.Context, *models.AuditLogEntry) error {
	return errors.New("disk full")
}

func (m failingAuditManager) AuditLog() auditlog.Repository {
	return failingAuditLog{m.RepositoryManager.AuditLog()}
}
