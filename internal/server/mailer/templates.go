package mailer

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
	"strings"
)

var (
	verificationTmpl = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif;">
<h2>欢迎注册交易信号系统</h2>
<p>{{.Username}}，您好！</p>
<p>请点击下面的链接验证您的邮箱地址：</p>
<p><a href="{{.Link}}">验证邮箱</a></p>
<p>如果按钮无法点击，请复制以下链接到浏览器：<br>{{.Link}}</p>
</body></html>`))

	resetTmpl = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif;">
<h2>重置密码</h2>
<p>{{.Username}}，您好！</p>
<p>我们收到了您的密码重置请求。请点击下面的链接设置新密码（24小时内有效）：</p>
<p><a href="{{.Link}}">重置密码</a></p>
<p>如果这不是您本人的操作，请忽略此邮件。</p>
</body></html>`))
)

const (
	verificationSubject = "验证您的邮箱地址"
	resetSubject        = "重置您的密码"
)

// Notifier renders lifecycle emails and hands them to a Sender.
type Notifier struct {
	sender  Sender
	baseURL string
}

func NewNotifier(sender Sender, baseURL string) *Notifier {
	return &Notifier{sender: sender, baseURL: strings.TrimRight(baseURL, "/")}
}

// VerificationLink is the link mailed after registration.
func (n *Notifier) VerificationLink(token string) string {
	return n.baseURL + "/api/auth/verify-email?token=" + url.QueryEscape(token)
}

// ResetLink is the link mailed after a reset request. The expiry is
// checked server-side and is not part of the link.
func (n *Notifier) ResetLink(token string) string {
	return n.baseURL + "/reset-password?token=" + url.QueryEscape(token)
}

func (n *Notifier) SendVerification(ctx context.Context, to, username, token string) error {
	return n.send(ctx, to, verificationSubject, verificationTmpl, username, n.VerificationLink(token))
}

func (n *Notifier) SendPasswordReset(ctx context.Context, to, username, token string) error {
	return n.send(ctx, to, resetSubject, resetTmpl, username, n.ResetLink(token))
}

func (n *Notifier) send(ctx context.Context, to, subject string, tmpl *template.Template, username, link string) error {
	var buf bytes.Buffer
	data := struct{ Username, Link string }{username, link}
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	return n.sender.Send(ctx, to, subject, buf.String())
}
