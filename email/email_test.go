package email

import (
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"autocatalog/config"
	"autocatalog/logger"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func setupTestMailer(fail error) (*SMTPMailer, *[]sentMail) {
	var sent []sentMail
	m := NewSMTPMailer(config.SMTP{Host: "smtp.example.com", Port: "587", User: "u", Password: "p", From: "noreply@example.com"})
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		if fail != nil {
			return fail
		}
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return m, &sent
}

func TestNew(t *testing.T) {
	assert.IsType(t, NopMailer{}, New(config.SMTP{}))
	assert.IsType(t, &SMTPMailer{}, New(config.SMTP{Host: "smtp.example.com"}))
}

func TestSendWelcome(t *testing.T) {
	m, sent := setupTestMailer(nil)

	require.NoError(t, m.SendWelcome("alice@example.com", "alice"))
	require.Len(t, *sent, 1)

	mail := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", mail.addr)
	assert.Equal(t, "noreply@example.com", mail.from)
	assert.Equal(t, []string{"alice@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: Welcome to Autocatalog\r\n")
	assert.Contains(t, mail.msg, "Hello alice")
}

func TestSendCommentNotification(t *testing.T) {
	m, sent := setupTestMailer(nil)

	require.NoError(t, m.SendCommentNotification("bob@example.com", "bob", "Model X", "http://localhost:8080/car/model-x"))
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].msg, "Subject: New comment on Model X\r\n")
	assert.Contains(t, (*sent)[0].msg, "http://localhost:8080/car/model-x")
}

func TestSend_Error(t *testing.T) {
	m, _ := setupTestMailer(errors.New("connection refused"))

	err := m.SendWelcome("alice@example.com", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNopMailer_Logs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(zap.NewNop()) })

	require.NoError(t, NopMailer{}.SendWelcome("alice@example.com", "alice"))
	require.NoError(t, NopMailer{}.SendCommentNotification("bob@example.com", "bob", "Model X", "/car/model-x"))
	assert.Equal(t, 2, logs.Len())
}
