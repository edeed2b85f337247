// Package api is the HTTP transport of the relay server.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dmitrijs2005/signalrelay/internal/logging"
	"github.com/dmitrijs2005/signalrelay/internal/server/metrics"
	"github.com/dmitrijs2005/signalrelay/internal/server/ratelimit"
	"github.com/dmitrijs2005/signalrelay/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

// Services are the handlers' collaborators.
type Services struct {
	Accounts *services.AccountService
	Webhooks *services.WebhookConfigService
	Dispatch *services.DispatchService
	Audit    *services.AuditService
	Exporter *services.AuditExporter
}

type HTTPServer struct {
	address     string
	baseURL     string
	corsOrigins []string
	svc         Services
	limiter     ratelimit.Limiter
	logger      logging.Logger
}

func NewHTTPServer(address, baseURL string, corsOrigins []string, l logging.Logger, svc Services, limiter ratelimit.Limiter) *HTTPServer {
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	return &HTTPServer{
		address:     address,
		baseURL:     baseURL,
		corsOrigins: corsOrigins,
		svc:         svc,
		limiter:     limiter,
		logger:      l.With("module", "http_server"),
	}
}

// Router builds the route tree.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.rateLimit("auth"))
				r.Post("/register", s.handleRegister)
				r.Post("/login", s.handleLogin)
				r.Post("/forgot-password", s.handleForgotPassword)
				r.Post("/send-verification", s.handleSendVerification)
			})
			r.Post("/refresh", s.handleRefresh)
			r.Get("/verify-email", s.handleVerifyEmail)
			r.Get("/reset-password", s.handleCheckResetToken)
			r.Post("/reset-password", s.handleResetPassword)

			r.With(s.authenticate).Get("/me", s.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/webhook-config", s.handleGetWebhookConfig)
			r.Put("/webhook-config", s.handleSetWebhookConfig)
			r.With(s.rateLimit("probe")).Post("/webhook-config/test", s.handleTestWebhook)

			r.Post("/trading-signal", s.handleTradingSignal)

			r.Get("/logs", s.handleGetLogs)
			r.Post("/logs", s.handleAddLog)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/users", s.handleListUsers)
				r.Post("/users/{id}/toggle", s.handleToggleUser)
				r.Delete("/users/{id}", s.handleDeleteUser)
				r.Post("/logs/export", s.handleExportLogs)
			})
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
