package models

import "time"

// AuditLogEntry is an immutable record of a lifecycle or dispatch event.
type AuditLogEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// Audit action labels. They are stored verbatim and shown to operators.
const (
	ActionSystemInit       = "系统初始化"
	ActionRegister         = "用户注册"
	ActionLogin            = "用户登录"
	ActionEmailVerified    = "邮件验证"
	ActionResetRequested   = "密码重置请求"
	ActionPasswordReset    = "密码重置"
	ActionWebhookUpdated   = "Webhook配置更新"
	ActionUserManagement   = "用户管理"
	ActionAccountStatus    = "账户状态变更"
	ActionSignalSent       = "交易信号发送"
	ActionSignalFailed     = "发送失败"
	ActionSessionRefreshed = "会话刷新"
)

// Limits for caller-supplied audit entries.
const (
	MaxActionLength  = 100
	MaxDetailsLength = 1000
)
