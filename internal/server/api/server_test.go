package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/signalrelay/internal/logging"
	"github.com/dmitrijs2005/signalrelay/internal/server/config"
	"github.com/dmitrijs2005/signalrelay/internal/server/mailer"
	"github.com/dmitrijs2005/signalrelay/internal/server/ratelimit"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/signalrelay/internal/server/services"
)

const adminPassword = "admin-secret"

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type testAPI struct {
	srv *httptest.Server
	rm  repomanager.RepositoryManager
}

func newTestAPI(t *testing.T, limiter ratelimit.Limiter) *testAPI {
	t.Helper()
	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		ResetTokenValidityDuration:   24 * time.Hour,
		DispatchTimeout:              2 * time.Second,
		ProbeTimeout:                 2 * time.Second,
		BaseURL:                      "http://front.test",
	}
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	rm := repomanager.NewMemoryRepositoryManager()

	audit := services.NewAuditService(rm, log)
	accounts := services.NewAccountService(rm, audit, mailer.NewNotifier(mailer.DisabledSender{}, cfg.BaseURL), log, cfg)
	_, err := accounts.EnsureAdmin(context.Background(), "admin", "admin@system.local", adminPassword)
	require.NoError(t, err)

	svc := Services{
		Accounts: accounts,
		Webhooks: services.NewWebhookConfigService(rm, audit, log),
		Dispatch: services.NewDispatchService(rm, audit, http.DefaultClient, log, cfg),
		Audit:    audit,
		Exporter: services.NewAuditExporter(rm, audit, cfg, log),
	}
	s := NewHTTPServer("127.0.0.1:0", cfg.BaseURL, nil, nopLogger{}, svc, limiter)

	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, rm: rm}
}

type apiResponse map[string]any

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, apiResponse, http.Header) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := apiResponse{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out, resp.Header
}

func (a *testAPI) login(t *testing.T, username, password string) string {
	t.Helper()
	code, body, _ := a.do(t, http.MethodPost, "/api/auth/login", "", fields{"username": username, "password": password})
	require.Equal(t, http.StatusOK, code, body)
	return body["accessToken"].(string)
}

// registerVerified registers username and follows its verification link.
func (a *testAPI) registerVerified(t *testing.T, username string) string {
	t.Helper()
	code, body, _ := a.do(t, http.MethodPost, "/api/auth/register", "",
		fields{"username": username, "email": username + "@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, code, body)

	acc, err := a.rm.Accounts().GetByUsername(context.Background(), username)
	require.NoError(t, err)
	code, _, hdr := a.do(t, http.MethodGet, "/api/auth/verify-email?token="+acc.EmailVerificationToken, "", nil)
	require.Equal(t, http.StatusFound, code)
	require.Equal(t, "http://front.test/?verified=true", hdr.Get("Location"))

	return a.login(t, username, "secret1")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewHTTPServer("127.0.0.1:0", "", nil, nopLogger{}, Services{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewHTTPServer("127.0.0.1:99999", "", nil, nopLogger{}, Services{}, nil)
	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	a := newTestAPI(t, nil)

	code, body, _ := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	resp, err := http.Get(a.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), "signalrelay_http_requests_total")
}
