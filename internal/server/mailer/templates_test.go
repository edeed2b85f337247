package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	to, subject, html string
	err               error
}

func (c *captureSender) Send(_ context.Context, to, subject, html string) error {
	c.to, c.subject, c.html = to, subject, html
	return c.err
}

func TestNotifier_Links(t *testing.T) {
	n := NewNotifier(DisabledSender{}, "https://relay.example/")

	assert.Equal(t, "https://relay.example/api/auth/verify-email?token=abc", n.VerificationLink("abc"))
	assert.Equal(t, "https://relay.example/reset-password?token=a%2Bb", n.ResetLink("a+b"))
}

func TestNotifier_SendVerification(t *testing.T) {
	c := &captureSender{}
	n := NewNotifier(c, "http://localhost:8080")

	require.NoError(t, n.SendVerification(context.Background(), "a@x.com", "alice", "tok123"))

	assert.Equal(t, "a@x.com", c.to)
	assert.Equal(t, verificationSubject, c.subject)
	assert.Contains(t, c.html, "alice")
	assert.Contains(t, c.html, "http://localhost:8080/api/auth/verify-email?token=tok123")
}

func TestNotifier_SendPasswordReset_EscapesName(t *testing.T) {
	c := &captureSender{}
	n := NewNotifier(c, "http://localhost:8080")

	require.NoError(t, n.SendPasswordReset(context.Background(), "a@x.com", "<script>", "tok"))

	assert.Equal(t, resetSubject, c.subject)
	assert.NotContains(t, c.html, "<script>")
	assert.Contains(t, c.html, "/reset-password?token=tok")
}
