package smtp

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/go-account-api/internal/config"
	"github.com/go-account-api/internal/domain"
)

// Mailer delivers rendered HTML messages to mailbox addresses.
type Mailer interface {
	Send(recipients []string, subject, htmlBody string) error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
	}
}

func (m *mailer) Send(recipients []string, subject, htmlBody string) error {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		m.from, strings.Join(recipients, ", "), subject, htmlBody,
	)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if err := smtp.SendMail(addr, auth, m.from, recipients, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %v: %w", err, domain.ErrUnavailable)
	}
	return nil
}
