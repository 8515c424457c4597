package email

import (
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"autocatalog/config"
	"autocatalog/logger"
)

// Mailer sends the transactional messages of the catalog.
type Mailer interface {
	SendWelcome(to, username string) error
	SendCommentNotification(to, username, subject, link string) error
}

// New returns an SMTP mailer, or a NopMailer when no SMTP host is configured.
func New(cfg config.SMTP) Mailer {
	if cfg.Host == "" {
		return NopMailer{}
	}
	return NewSMTPMailer(cfg)
}

type SMTPMailer struct {
	host     string
	port     string
	user     string
	password string
	from     string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg config.SMTP) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		password: cfg.Password,
		from:     cfg.From,
		sendMail: smtp.SendMail,
	}
}

func (e *SMTPMailer) SendWelcome(to, username string) error {
	subject := "Welcome to Autocatalog"
	body := fmt.Sprintf(`
Hello %s,

Your account has been created. You can now like cars, comment on
listings and articles, and keep your profile up to date.

---
Autocatalog
`, username)

	return e.send(to, subject, body)
}

func (e *SMTPMailer) SendCommentNotification(to, username, subject, link string) error {
	body := fmt.Sprintf(`
Hello %s,

There is a new comment on "%s":

%s

You can turn these messages off in your profile settings.

---
Autocatalog
`, username, subject, link)

	return e.send(to, "New comment on "+subject, body)
}

func (e *SMTPMailer) send(to, subject, body string) error {
	message := buildMessage(e.from, to, subject, body)

	var auth smtp.Auth
	if e.user != "" {
		auth = smtp.PlainAuth("", e.user, e.password, e.host)
	}
	addr := fmt.Sprintf("%s:%s", e.host, e.port)

	if err := e.sendMail(addr, auth, e.from, []string{to}, message); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	logger.L().Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", from, to, subject, body))
}

// NopMailer only logs what would have been sent.
type NopMailer struct{}

func (NopMailer) SendWelcome(to, username string) error {
	logger.L().Info("welcome email skipped, smtp not configured", zap.String("to", to), zap.String("username", username))
	return nil
}

func (NopMailer) SendCommentNotification(to, username, subject, link string) error {
	logger.L().Info("comment notification skipped, smtp not configured",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("link", link),
	)
	return nil
}
