package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/dmitrijs2005/signalrelay/internal/common"
	"github.com/dmitrijs2005/signalrelay/internal/server/services"
)

const maxRequestBody = 1 << 20

// fields are merged into the top level of a response next to success and
// message.
type fields map[string]any

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, message string, extra fields) {
	body := fields{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, fields{"success": false, "message": message})
}

// decode reads a JSON body into dst and runs its validation, if any.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrValidation)
	}
	if v, ok := dst.(validation.Validatable); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
	}
	return nil
}

// errorStatus maps a service error to a status code and a message safe to
// show to the caller.
func errorStatus(err error) (int, string) {
	var derr *services.DispatchError
	switch {
	case errors.Is(err, common.ErrMissingParameter):
		return http.StatusBadRequest, "缺少必要参数"
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, "参数无效: " + validationDetail(err)
	case errors.Is(err, common.ErrDuplicateIdentity):
		return http.StatusConflict, "用户名或邮箱已被注册"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "用户不存在"
	case errors.Is(err, common.ErrInvalidCredential):
		return http.StatusUnauthorized, "密码错误"
	case errors.Is(err, common.ErrUnverifiedEmail):
		return http.StatusForbidden, "请先验证邮箱后再登录"
	case errors.Is(err, common.ErrAlreadyVerified):
		return http.StatusBadRequest, "邮箱已经验证过了"
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusBadRequest, "链接无效或已过期"
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusBadRequest, "重置链接已过期，请重新申请"
	case errors.Is(err, common.ErrSessionExpired):
		return http.StatusUnauthorized, "会话已过期，请重新登录"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "未登录或登录已失效"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "权限不足"
	case errors.Is(err, common.ErrProtectedAccount):
		return http.StatusForbidden, "不能操作管理员账户"
	case errors.Is(err, common.ErrInvalidURL):
		return http.StatusBadRequest, "webhook URL格式无效"
	case errors.Is(err, common.ErrNoConfig):
		return http.StatusBadRequest, "请先配置您的webhook设置"
	case errors.Is(err, common.ErrConfigDisabled):
		return http.StatusBadRequest, "Webhook配置已禁用，请在设置中启用"
	case errors.Is(err, common.ErrTransportTimeout):
		return http.StatusGatewayTimeout, "发送超时，接收端处理时间过长"
	case errors.Is(err, common.ErrTransportError):
		return http.StatusBadGateway, "网络错误，请重试"
	case errors.Is(err, common.ErrUpstreamNonSuccess) && errors.As(err, &derr):
		return http.StatusBadGateway, fmt.Sprintf("发送失败: %d", derr.StatusCode)
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests, "请求过于频繁，请稍后再试"
	case errors.Is(err, common.ErrExportDisabled):
		return http.StatusServiceUnavailable, "审计导出未配置"
	default:
		return http.StatusInternalServerError, "服务器错误"
	}
}

// validationDetail strips the sentinel prefix from a wrapped ErrValidation.
func validationDetail(err error) string {
	msg, _ := strings.CutPrefix(err.Error(), common.ErrValidation.Error()+": ")
	return msg
}

// fail writes err as a failure response. Unexpected errors are logged.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, msg)
}
