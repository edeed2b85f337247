package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/signalrelay/internal/common"
	"github.com/dmitrijs2005/signalrelay/internal/server/metrics"
)

type ctxKey string

const userIDKey ctxKey = "userID"

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// authenticate requires a valid access token and puts its user id into the
// request context.
func (s *HTTPServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.fail(w, r, common.ErrorUnauthorized)
			return
		}

		userID, err := s.svc.Accounts.Authenticate(token)
		if err != nil {
			s.logger.Debug(r.Context(), "access token rejected", "error", err)
			if errors.Is(err, common.ErrSessionExpired) {
				s.fail(w, r, err)
				return
			}
			s.fail(w, r, common.ErrorUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientKey identifies the caller for rate limiting: the user when
// authenticated, else the remote address.
func clientKey(r *http.Request) string {
	if id := userIDFrom(r.Context()); id != "" {
		return "uid:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// rateLimit rejects callers over the limiter's budget for scope. Limiter
// errors let the request through.
func (s *HTTPServer) rateLimit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := s.limiter.Allow(r.Context(), scope+":"+clientKey(r))
			if err != nil {
				s.logger.Warn(r.Context(), "rate limiter unavailable", "scope", scope, "error", err)
			}

			if d.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			if !d.Allowed {
				metrics.RateLimited.WithLabelValues(scope).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())))
				s.fail(w, r, common.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
