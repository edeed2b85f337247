package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/signalrelay/internal/common"
	"github.com/dmitrijs2005/signalrelay/internal/logging"
	"github.com/dmitrijs2005/signalrelay/internal/server/auth"
	"github.com/dmitrijs2005/signalrelay/internal/server/config"
	"github.com/dmitrijs2005/signalrelay/internal/server/mailer"
	"github.com/dmitrijs2005/signalrelay/internal/server/models"
	"github.com/dmitrijs2005/signalrelay/internal/server/repositories/repomanager"
)

// MinPasswordLength is enforced on registration and password reset.
const MinPasswordLength = 6

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RegisterResult reports a new, still unverified account.
type RegisterResult struct {
	Account           *models.Account
	NeedsVerification bool
	EmailSent         bool
}

// LoginResult is the account of a successful login and its session.
type LoginResult struct {
	Account *models.Account
	Tokens  *TokenPair
}

// AccountService owns the per-account state machine:
//
//	Unverified --VerifyEmail--> Verified <--ToggleUserStatus--> Suspended
//	any --DeleteUser--> gone
//
// The seeded admin never transitions.
type AccountService struct {
	repomanager                  repomanager.RepositoryManager
	audit                        *AuditService
	notifier                     *mailer.Notifier
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	resetTokenValidityDuration   time.Duration
	now                          func() time.Time
}

func NewAccountService(m repomanager.RepositoryManager, audit *AuditService, notifier *mailer.Notifier,
	logger logging.Logger, cfg *config.Config) *AccountService {
	return &AccountService{
		repomanager:                  m,
		audit:                        audit,
		notifier:                     notifier,
		logger:                       logger.With("module", "accounts"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		resetTokenValidityDuration:   cfg.ResetTokenValidityDuration,
		now:                          time.Now,
	}
}

// NormalizeEmail is applied before every email lookup or write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified account and mails its verification link.
// A failed email does not fail the registration; the token stays valid.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (*RegisterResult, error) {
	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return nil, common.ErrMissingParameter
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, MinPasswordLength)
	}

	repo := s.repomanager.Accounts()

	// checked up front so a duplicate never costs a bcrypt round
	for _, lookup := range []func() (*models.Account, error){
		func() (*models.Account, error) { return repo.GetByUsername(ctx, username) },
		func() (*models.Account, error) { return repo.GetByEmail(ctx, email) },
	} {
		_, err := lookup()
		if err == nil {
			return nil, common.ErrDuplicateIdentity
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, s.internal(ctx, "lookup account", err)
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, s.internal(ctx, "hash password", err)
	}
	token, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, s.internal(ctx, "generate token", err)
	}

	acc := &models.Account{
		ID:                     uuid.NewString(),
		Username:               username,
		Email:                  email,
		PasswordHash:           hash,
		EmailVerificationToken: token,
	}
	if err := repo.Create(ctx, acc); err != nil {
		if errors.Is(err, common.ErrDuplicateIdentity) {
			return nil, err
		}
		return nil, s.internal(ctx, "create account", err)
	}

	s.logger.Debug(ctx, "account registered", "user_id", acc.ID, "token", common.Prefix(token, 8)+"...")
	s.audit.Record(ctx, acc.ID, models.ActionRegister, fmt.Sprintf("用户 %s 注册成功，等待邮件验证", acc.Username))

	sent := s.mail(ctx, "verification", func() error {
		return s.notifier.SendVerification(ctx, acc.Email, acc.Username, token)
	})

	return &RegisterResult{Account: acc, NeedsVerification: true, EmailSent: sent}, nil
}

// Login checks the credentials and opens a session. Unverified or
// suspended accounts are refused unless they are the admin.
func (s *AccountService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	acc, err := s.repomanager.Accounts().GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "lookup account", err)
	}

	ok, err := auth.ComparePassword(acc.PasswordHash, password)
	if err != nil {
		return nil, s.internal(ctx, "compare password", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredential
	}
	if !acc.EmailVerified && !acc.IsAdmin {
		return nil, common.ErrUnverifiedEmail
	}

	pair, err := s.generateTokenPair(ctx, acc.ID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, acc.ID, models.ActionLogin, fmt.Sprintf("用户 %s 登录成功", acc.Username))
	return &LoginResult{Account: acc, Tokens: pair}, nil
}

// VerifyEmail consumes a verification token. The token is single-use even
// under concurrent requests: the store only clears it once.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, common.ErrInvalidToken
	}
	repo := s.repomanager.Accounts()

	acc, err := repo.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, s.internal(ctx, "lookup token", err)
	}
	if acc.EmailVerified {
		return nil, common.ErrAlreadyVerified
	}

	if err := repo.ConsumeVerificationToken(ctx, acc.ID, token); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, s.internal(ctx, "consume token", err)
	}
	acc.EmailVerified = true
	acc.EmailVerificationToken = ""

	s.audit.Record(ctx, acc.ID, models.ActionEmailVerified, fmt.Sprintf("用户 %s 邮件验证成功", acc.Username))
	return acc, nil
}

// ResendVerification mails the pending verification link again. It
// reports whether an email actually went out; without a configured sender
// it still succeeds.
func (s *AccountService) ResendVerification(ctx context.Context, email string) (bool, error) {
	acc, err := s.repomanager.Accounts().GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, common.ErrorNotFound
		}
		return false, s.internal(ctx, "lookup account", err)
	}
	if acc.EmailVerified {
		return false, common.ErrAlreadyVerified
	}
	if acc.EmailVerificationToken == "" {
		return false, common.ErrInvalidToken
	}

	err = s.notifier.SendVerification(ctx, acc.Email, acc.Username, acc.EmailVerificationToken)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrMailerDisabled):
		s.logger.Info(ctx, "mail sender disabled, verification email skipped", "user_id", acc.ID)
		return false, nil
	default:
		return false, s.internal(ctx, "send verification email", err)
	}
}

// InitiatePasswordReset issues a fresh reset token, replacing any pending
// one, and mails the reset link. It works for unverified accounts too.
func (s *AccountService) InitiatePasswordReset(ctx context.Context, email string) (*models.Account, bool, error) {
	repo := s.repomanager.Accounts()
	acc, err := repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, false, common.ErrorNotFound
		}
		return nil, false, s.internal(ctx, "lookup account", err)
	}

	token, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, false, s.internal(ctx, "generate token", err)
	}
	expires := s.now().Add(s.resetTokenValidityDuration).UTC()
	if err := repo.SetResetToken(ctx, acc.ID, token, expires); err != nil {
		return nil, false, s.internal(ctx, "store reset token", err)
	}
	acc.PasswordResetToken = token
	acc.PasswordResetExpiresAt = &expires

	s.audit.Record(ctx, acc.ID, models.ActionResetRequested, fmt.Sprintf("用户 %s 请求重置密码", acc.Username))

	sent := s.mail(ctx, "password reset", func() error {
		return s.notifier.SendPasswordReset(ctx, acc.Email, acc.Username, token)
	})
	return acc, sent, nil
}

// ResetPassword consumes a reset token. An expired token is cleared on
// detection, so it reports TokenExpired once and InvalidToken afterwards.
// All sessions of the account are revoked.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) (*models.Account, error) {
	if token == "" {
		return nil, common.ErrInvalidToken
	}
	if len(newPassword) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, MinPasswordLength)
	}
	repo := s.repomanager.Accounts()

	acc, err := repo.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, s.internal(ctx, "lookup token", err)
	}

	if acc.PasswordResetExpiresAt != nil && acc.PasswordResetExpiresAt.Before(s.now()) {
		if err := repo.ClearResetToken(ctx, acc.ID, token); err != nil && !errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "clear expired reset token failed", "user_id", acc.ID, "error", err)
		}
		return nil, common.ErrTokenExpired
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return nil, s.internal(ctx, "hash password", err)
	}
	if err := repo.CompletePasswordReset(ctx, acc.ID, token, hash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, s.internal(ctx, "reset password", err)
	}
	acc.PasswordHash = hash
	acc.PasswordResetToken = ""
	acc.PasswordResetExpiresAt = nil

	s.revokeSessions(ctx, acc.ID)
	s.audit.Record(ctx, acc.ID, models.ActionPasswordReset, fmt.Sprintf("用户 %s 密码重置成功", acc.Username))
	return acc, nil
}

// CheckResetToken reports whether token can still be used. It does not
// consume or clear it.
func (s *AccountService) CheckResetToken(ctx context.Context, token string) error {
	if token == "" {
		return common.ErrInvalidToken
	}
	acc, err := s.repomanager.Accounts().GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return s.internal(ctx, "lookup token", err)
	}
	if acc.PasswordResetExpiresAt != nil && acc.PasswordResetExpiresAt.Before(s.now()) {
		return common.ErrTokenExpired
	}
	return nil
}

// ToggleUserStatus suspends a verified account or reactivates a suspended
// one and returns the new state. Suspension revokes sessions.
func (s *AccountService) ToggleUserStatus(ctx context.Context, adminID, targetID string) (bool, error) {
	target, err := s.adminTarget(ctx, adminID, targetID)
	if err != nil {
		return false, err
	}

	active, err := s.repomanager.Accounts().ToggleActive(ctx, target.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, common.ErrorNotFound
		}
		return false, s.internal(ctx, "toggle account", err)
	}

	label := "启用"
	if !active {
		label = "禁用"
		s.revokeSessions(ctx, target.ID)
	}

	s.audit.Record(ctx, adminID, models.ActionUserManagement, fmt.Sprintf("%s用户: %s", label, target.Username))
	s.audit.Record(ctx, target.ID, models.ActionAccountStatus, fmt.Sprintf("账户被管理员%s", label))
	return active, nil
}

// DeleteUser removes an account, its webhook and its sessions. Its audit
// entries are kept.
func (s *AccountService) DeleteUser(ctx context.Context, adminID, targetID string) error {
	target, err := s.adminTarget(ctx, adminID, targetID)
	if err != nil {
		return err
	}

	s.revokeSessions(ctx, target.ID)
	if err := s.repomanager.Accounts().Delete(ctx, target.ID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return s.internal(ctx, "delete account", err)
	}

	s.audit.Record(ctx, adminID, models.ActionUserManagement, fmt.Sprintf("删除用户: %s", target.Username))
	return nil
}

func (s *AccountService) ListUsers(ctx context.Context, adminID string) ([]models.UserSummary, error) {
	if err := requireAdmin(ctx, s.repomanager, adminID); err != nil {
		return nil, err
	}
	accs, err := s.repomanager.Accounts().List(ctx)
	if err != nil {
		return nil, s.internal(ctx, "list accounts", err)
	}
	out := make([]models.UserSummary, 0, len(accs))
	for _, a := range accs {
		out = append(out, a.Summary())
	}
	return out, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	acc, err := s.repomanager.Accounts().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "load account", err)
	}
	return acc, nil
}

// EnsureAdmin seeds the protected admin account unless one exists. It is
// idempotent and reports whether an account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	repo := s.repomanager.Accounts()

	_, err := repo.GetAdmin(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return false, s.internal(ctx, "lookup admin", err)
	}
	if password == "" {
		return false, fmt.Errorf("%w: admin password", common.ErrMissingParameter)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, s.internal(ctx, "hash password", err)
	}
	admin := &models.Account{
		ID:            uuid.NewString(),
		Username:      strings.TrimSpace(username),
		Email:         NormalizeEmail(email),
		PasswordHash:  hash,
		EmailVerified: true,
		IsAdmin:       true,
	}
	if err := repo.Create(ctx, admin); err != nil {
		if errors.Is(err, common.ErrDuplicateIdentity) {
			return false, err
		}
		return false, s.internal(ctx, "create admin", err)
	}

	s.logger.Info(ctx, "admin account created", "user_id", admin.ID, "username", admin.Username)
	s.audit.Record(ctx, admin.ID, models.ActionSystemInit, "超级用户admin创建成功")
	return true, nil
}

// UpdateAdminPassword replaces the admin's password and revokes its
// sessions.
func (s *AccountService) UpdateAdminPassword(ctx context.Context, password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, MinPasswordLength)
	}
	repo := s.repomanager.Accounts()

	admin, err := repo.GetAdmin(ctx)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return s.internal(ctx, "lookup admin", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return s.internal(ctx, "hash password", err)
	}
	if err := repo.UpdatePassword(ctx, admin.ID, hash); err != nil {
		return s.internal(ctx, "update password", err)
	}

	s.revokeSessions(ctx, admin.ID)
	s.audit.Record(ctx, admin.ID, models.ActionPasswordReset, fmt.Sprintf("用户 %s 密码由运维工具重置", admin.Username))
	return nil
}

// RefreshToken rotates a refresh token and mints a new access token. The
// account must still be allowed to log in.
func (s *AccountService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrInvalidToken
	}
	sessions := s.repomanager.Sessions()

	session, err := sessions.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, s.internal(ctx, "find session", err)
	}
	if session.ExpiresAt.Before(s.now()) {
		return nil, common.ErrSessionExpired
	}

	acc, err := s.repomanager.Accounts().GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, s.internal(ctx, "load account", err)
	}
	if !acc.EmailVerified && !acc.IsAdmin {
		return nil, common.ErrUnverifiedEmail
	}

	next, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, s.internal(ctx, "generate token", err)
	}
	if err := sessions.Rotate(ctx, refreshToken, next, acc.ID, s.refreshTokenValidityDuration); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, s.internal(ctx, "rotate session", err)
	}
	access, err := auth.GenerateToken(acc.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, s.internal(ctx, "sign access token", err)
	}

	s.audit.Record(ctx, acc.ID, models.ActionSessionRefreshed, fmt.Sprintf("用户 %s 会话已刷新", acc.Username))
	return &TokenPair{AccessToken: access, RefreshToken: next}, nil
}

// Authenticate resolves an access token to its user id.
func (s *AccountService) Authenticate(accessToken string) (string, error) {
	return auth.GetUserIDFromToken(accessToken, s.jwtSecret)
}

// --- helpers below ---

func (s *AccountService) generateTokenPair(ctx context.Context, userID string) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, s.internal(ctx, "sign access token", err)
	}
	refresh, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, s.internal(ctx, "generate token", err)
	}
	if err := s.repomanager.Sessions().Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, s.internal(ctx, "create session", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// adminTarget applies the guards shared by admin operations.
func (s *AccountService) adminTarget(ctx context.Context, adminID, targetID string) (*models.Account, error) {
	if err := requireAdmin(ctx, s.repomanager, adminID); err != nil {
		return nil, err
	}
	target, err := s.repomanager.Accounts().GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "load account", err)
	}
	if target.IsAdmin {
		return nil, common.ErrProtectedAccount
	}
	return target, nil
}

func (s *AccountService) revokeSessions(ctx context.Context, userID string) {
	if err := s.repomanager.Sessions().DeleteByUser(ctx, userID); err != nil {
		s.logger.Warn(ctx, "revoke sessions failed", "user_id", userID, "error", err)
	}
}

// mail runs send and reports whether the email went out. Failures never
// reach the caller.
func (s *AccountService) mail(ctx context.Context, kind string, send func() error) bool {
	err := send()
	switch {
	case err == nil:
		return true
	case errors.Is(err, common.ErrMailerDisabled):
		s.logger.Info(ctx, "mail sender disabled, email skipped", "kind", kind)
	default:
		s.logger.Warn(ctx, "send email failed", "kind", kind, "error", err)
	}
	return false
}

func (s *AccountService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, op+" failed", "error", err)
	return fmt.Errorf("%w: %s: %v", common.ErrorInternal, op, err)
}
