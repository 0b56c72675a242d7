package identity

import (
	"context"
	"fmt"
	"net/smtp"
	"regexp"

	"go.uber.org/zap"
)

// Mailer delivers transactional email for the local provider.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends plain-text mail through an SMTP relay.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s\r\n",
		m.cfg.From, to, subject, body))

	return smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg)
}

// LogMailer writes outgoing mail to the log instead of sending it. It is
// used when no SMTP relay is configured. Link tokens are redacted unless
// revealLinks is set.
type LogMailer struct {
	log         *zap.Logger
	revealLinks bool
}

func NewLogMailer(log *zap.Logger, revealLinks bool) *LogMailer {
	if log == nil {
		log = zap.L()
	}
	return &LogMailer{log: log, revealLinks: revealLinks}
}

var linkTokenPattern = regexp.MustCompile(`(token_hash|token)=[^&\s]+`)

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	if !m.revealLinks {
		body = redactLinks(body)
	}
	m.log.Info("outgoing mail",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}

func redactLinks(body string) string {
	return linkTokenPattern.ReplaceAllString(body, "$1=REDACTED")
}
