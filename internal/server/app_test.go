package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/signalrelay/internal/server/config"
	"github.com/dmitrijs2005/signalrelay/internal/server/mailer"
	"github.com/dmitrijs2005/signalrelay/internal/server/ratelimit"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.HTTPAddr = "127.0.0.1:0"
	c.Storage = config.StorageMemory
	c.AdminPassword = "admin-secret"
	c.LogLevel = "error"
	return c
}

func TestNewApp_SeedsAdmin(t *testing.T) {
	ctx := context.Background()
	app, err := NewApp(ctx, testConfig())
	require.NoError(t, err)
	defer app.close(ctx)

	admin, err := app.repomanager.Accounts().GetAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin", admin.Username)
	assert.True(t, admin.EmailVerified)

	assert.IsType(t, ratelimit.Noop{}, app.limiter)
	assert.IsType(t, mailer.DisabledSender{}, app.mailSender())
}

func TestNewApp_OptionalBackends(t *testing.T) {
	c := testConfig()
	c.SMTPHost = "smtp.example.com"
	c.RedisAddr = "127.0.0.1:6379"

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	defer app.close(context.Background())

	assert.IsType(t, &mailer.SMTPSender{}, app.mailSender())
	assert.IsType(t, &ratelimit.RedisLimiter{}, app.limiter)
	assert.Len(t, app.closers, 2)
}

func TestNewApp_BadLogFormat(t *testing.T) {
	c := testConfig()
	c.LogFormat = "xml"

	_, err := NewApp(context.Background(), c)
	assert.Error(t, err)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
	assert.Nil(t, app.closers)
}
