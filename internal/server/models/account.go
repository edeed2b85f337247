// Package models holds the server's domain types.
package models

import "time"

// Account is a registered identity with credentials and lifecycle state.
// Optional token fields use "" for absent. EmailVerified doubles as the
// active flag toggled by admins.
type Account struct {
	ID                     string
	Username               string
	Email                  string
	PasswordHash           string
	EmailVerified          bool
	EmailVerificationToken string
	PasswordResetToken     string
	PasswordResetExpiresAt *time.Time
	IsAdmin                bool
	Webhook                *WebhookConfig
	CreatedAt              time.Time
}

// WebhookConfig is the outbound delivery target owned by an account.
type WebhookConfig struct {
	URL      string `json:"url"`
	Token    string `json:"token,omitempty"`
	IsActive bool   `json:"isActive"`
}

// PublicAccount is the view of an Account that may cross the API boundary.
type PublicAccount struct {
	ID            string         `json:"id"`
	Username      string         `json:"username"`
	Email         string         `json:"email"`
	EmailVerified bool           `json:"emailVerified"`
	IsAdmin       bool           `json:"isAdmin"`
	Webhook       *WebhookConfig `json:"webhookConfig,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// UserSummary is the admin listing row; it exposes only whether a webhook
// is configured.
type UserSummary struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	EmailVerified    bool      `json:"emailVerified"`
	IsAdmin          bool      `json:"isAdmin"`
	HasWebhookConfig bool      `json:"hasWebhookConfig"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Public returns the account without secrets or tokens.
func (a *Account) Public() *PublicAccount {
	p := &PublicAccount{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
		IsAdmin:       a.IsAdmin,
		CreatedAt:     a.CreatedAt,
	}
	if a.Webhook != nil {
		w := *a.Webhook
		p.Webhook = &w
	}
	return p
}

// Summary returns the admin listing row for the account.
func (a *Account) Summary() UserSummary {
	return UserSummary{
		ID:               a.ID,
		Username:         a.Username,
		Email:            a.Email,
		EmailVerified:    a.EmailVerified,
		IsAdmin:          a.IsAdmin,
		HasWebhookConfig: a.Webhook != nil,
		CreatedAt:        a.CreatedAt,
	}
}

// Clone returns a deep copy, so in-memory stores never share pointers with
// callers.
func (a *Account) Clone() *Account {
	c := *a
	if a.PasswordResetExpiresAt != nil {
		t := *a.PasswordResetExpiresAt
		c.PasswordResetExpiresAt = &t
	}
	if a.Webhook != nil {
		w := *a.Webhook
		c.Webhook = &w
	}
	return &c
}
