package mailer

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/textproto"
	"strings"
	"testing"

	"github.com/dmitrijs2005/signalrelay/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTP answers one session on conn and records the DATA payload.
func fakeSMTP(t *testing.T, conn net.Conn, data chan<- string) {
	t.Helper()
	defer conn.Close()

	tp := textproto.NewConn(conn)
	reply := func(s string) { _ = tp.PrintfLine("%s", s) }

	reply("220 localhost ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch cmd {
		case "EHLO":
			reply("250-localhost")
			reply("250 AUTH PLAIN")
		case "AUTH":
			reply("235 2.7.0 Authentication successful")
		case "MAIL", "RCPT":
			reply("250 OK")
		case "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			body, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			data <- string(body)
			reply("250 OK queued")
		case "QUIT":
			reply("221 Bye")
			return
		default:
			reply("502 unknown")
		}
	}
}

func TestSMTPSender_Send(t *testing.T) {
	client, server := net.Pipe()
	data := make(chan string, 1)
	go fakeSMTP(t, server, data)

	s := NewSMTPSender("localhost", 465, "relay@example.com", "pw", "")
	s.dial = func(ctx context.Context, addr, host string) (net.Conn, error) {
		assert.Equal(t, "localhost:465", addr)
		return client, nil
	}

	err := s.Send(context.Background(), "alice@example.com", "验证您的邮箱地址", "<p>hi</p>")
	require.NoError(t, err)

	msg := <-data
	assert.Contains(t, msg, "From: relay@example.com")
	assert.Contains(t, msg, "To: alice@example.com")
	assert.Contains(t, msg, "Subject: =?utf-8?b?")
	assert.Contains(t, msg, "Content-Type: text/html")
	assert.Contains(t, msg, "<p>hi</p>")
}

func TestSMTPSender_DialError(t *testing.T) {
	s := NewSMTPSender("smtp.example", 465, "u", "p", "from@example.com")
	s.dial = func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("refused")
	}

	err := s.Send(context.Background(), "a@x.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp dial")
}

func TestDisabledSender(t *testing.T) {
	err := DisabledSender{}.Send(context.Background(), "a@x.com", "s", "b")
	assert.ErrorIs(t, err, common.ErrMailerDisabled)
}

func TestBuildMessage_ASCIISubject(t *testing.T) {
	msg := string(buildMessage("f@x.com", "t@x.com", "Hello", "<b>body</b>"))
	r := textproto.NewReader(bufio.NewReader(strings.NewReader(msg)))
	h, err := r.ReadMIMEHeader()
	require.NoError(t, err)
	assert.Equal(t, "Hello", h.Get("Subject"))
	assert.Equal(t, "1.0", h.Get("MIME-Version"))
}
