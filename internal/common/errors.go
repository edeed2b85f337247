// Package common defines sentinel errors and small helpers shared by the
// signal relay server and its operator tools. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound        = errors.New("not found")
	ErrDuplicateIdentity = errors.New("username or email already registered")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("admin privileges required")
	ErrValidation     = errors.New("validation error")
	ErrRateLimited    = errors.New("too many requests")

	// Account lifecycle errors.
	ErrInvalidCredential = errors.New("invalid username or password")
	ErrUnverifiedEmail   = errors.New("email address is not verified")
	ErrAlreadyVerified   = errors.New("email address already verified")
	ErrProtectedAccount  = errors.New("account is protected")

	// Token errors (verification, reset and session tokens).
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrSessionExpired   = errors.New("session expired")
	ErrMissingParameter = errors.New("missing required parameter")

	// Webhook configuration and dispatch errors.
	ErrInvalidURL         = errors.New("invalid webhook url")
	ErrNoConfig           = errors.New("webhook is not configured")
	ErrConfigDisabled     = errors.New("webhook is disabled")
	ErrTransportTimeout   = errors.New("webhook request timed out")
	ErrTransportError     = errors.New("webhook request failed")
	ErrUpstreamNonSuccess = errors.New("webhook returned non-success status")

	// Optional collaborators that are not configured.
	ErrMailerDisabled = errors.New("mail sender is not configured")
	ErrExportDisabled = errors.New("audit export is not configured")
)
