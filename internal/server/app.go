// Package server wires the relay application together: configuration,
// logging, storage, services and the HTTP API. It also handles graceful
// shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/signalrelay/internal/logging"
	"github.com/dmitrijs2005/signalrelay/internal/server/api"
	"github.com/dmitrijs2005/signalrelay/internal/server/config"
	"github.com/dmitrijs2005/signalrelay/internal/server/mailer"
	"github.com/dmitrijs2005/signalrelay/internal/server/ratelimit"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/signalrelay/internal/server/services"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
	services    api.Services
	limiter     ratelimit.Limiter
	closers     []func() error
}

// NewApp opens storage, applies migrations, seeds the admin account and
// builds the services. The caller owns the returned App and must Run it.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{Format: c.LogFormat, Level: c.LogLevel, File: c.LogFile})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	rm, err := repomanager.New(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app := &App{config: c, logger: logger, repomanager: rm}
	app.closers = append(app.closers, rm.Close)

	audit := services.NewAuditService(rm, logger.With("module", "audit"))
	accounts := services.NewAccountService(rm, audit, mailer.NewNotifier(app.mailSender(), c.BaseURL),
		logger.With("module", "accounts"), c)

	if _, err := accounts.EnsureAdmin(ctx, c.AdminUsername, c.AdminEmail, c.AdminPassword); err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("admin init error: %w", err)
	}

	app.services = api.Services{
		Accounts: accounts,
		Webhooks: services.NewWebhookConfigService(rm, audit, logger.With("module", "webhooks")),
		Dispatch: services.NewDispatchService(rm, audit, &http.Client{}, logger.With("module", "dispatch"), c),
		Audit:    audit,
		Exporter: services.NewAuditExporter(rm, audit, c, logger.With("module", "export")),
	}
	app.limiter = app.newLimiter()

	return app, nil
}

func (app *App) mailSender() mailer.Sender {
	if app.config.SMTPHost == "" {
		return mailer.DisabledSender{}
	}
	return mailer.NewSMTPSender(app.config.SMTPHost, app.config.SMTPPort,
		app.config.SMTPUser, app.config.SMTPPassword, app.config.SMTPFrom)
}

func (app *App) newLimiter() ratelimit.Limiter {
	if app.config.RedisAddr == "" {
		return ratelimit.Noop{}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     app.config.RedisAddr,
		Password: app.config.RedisPassword,
	})
	app.closers = append(app.closers, rdb.Close)
	return ratelimit.NewRedisLimiter(rdb, "signalrelay", app.config.RateLimitMax, app.config.RateLimitWindow)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := api.NewHTTPServer(app.config.HTTPAddr, app.config.BaseURL, app.config.CORSOrigins,
		app.logger.With("module", "http"), app.services, app.limiter)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves HTTP until ctx is cancelled or a termination signal arrives,
// then releases storage and the Redis client.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.HTTPAddr, "storage", app.config.Storage)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(ctx, "close error", "error", err)
		}
	}
	app.closers = nil
}
