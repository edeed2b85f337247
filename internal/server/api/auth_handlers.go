package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/dmitrijs2005/signalrelay/internal/common"
	"github.com/dmitrijs2005/signalrelay/internal/server/services"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.RuneLength(1, 50)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(services.MinPasswordLength, 128)),
	)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.svc.Accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "Registered", "username", res.Account.Username)
	writeSuccess(w, "注册成功！请检查您的邮箱并点击验证链接完成注册", fields{
		"user":              res.Account.Public(),
		"needsVerification": res.NeedsVerification,
		"emailSent":         res.EmailSent,
	})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "请填写用户名和密码")
		return
	}

	res, err := s.svc.Accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeSuccess(w, "登录成功", fields{
		"user":         res.Account.Public(),
		"accessToken":  res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
	})
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	pair, err := s.svc.Accounts.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, "", fields{"accessToken": pair.AccessToken, "refreshToken": pair.RefreshToken})
}

// handleVerifyEmail is the target of the mailed link, so it answers with a
// redirect to the front page rather than JSON.
func (s *HTTPServer) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "缺少验证令牌")
		return
	}

	q := url.Values{}
	if _, err := s.svc.Accounts.VerifyEmail(r.Context(), token); err != nil {
		_, msg := errorStatus(err)
		q.Set("error", msg)
	} else {
		q.Set("verified", "true")
	}
	http.Redirect(w, r, strings.TrimRight(s.baseURL, "/")+"/?"+q.Encode(), http.StatusFound)
}

func (s *HTTPServer) handleSendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "请提供邮箱地址")
		return
	}

	sent, err := s.svc.Accounts.ResendVerification(r.Context(), req.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !sent {
		writeSuccess(w, "验证邮件已发送（开发模式）", nil)
		return
	}
	writeSuccess(w, "验证邮件已发送，请检查您的邮箱", nil)
}

func (s *HTTPServer) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "请提供邮箱地址")
		return
	}

	_, sent, err := s.svc.Accounts.InitiatePasswordReset(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "邮箱地址不存在")
			return
		}
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, "密码重置邮件已发送，请检查您的邮箱", fields{"emailSent": sent})
}

func (s *HTTPServer) handleCheckResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "缺少重置令牌")
		return
	}
	if err := s.svc.Accounts.CheckResetToken(r.Context(), token); err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, "令牌有效", nil)
}

func (s *HTTPServer) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		s.fail(w, r, common.ErrMissingParameter)
		return
	}
	if len(req.NewPassword) < services.MinPasswordLength {
		writeError(w, http.StatusBadRequest, "密码长度至少6位")
		return
	}

	if _, err := s.svc.Accounts.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, "密码重置成功，请使用新密码登录", nil)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	acc, err := s.svc.Accounts.GetAccount(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, "", fields{"user": acc.Public()})
}
