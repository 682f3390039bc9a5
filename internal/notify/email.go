// Package notify delivers outbound alerts over SMTP and chat webhooks.
// Senders are thin sinks: an unconfigured sender is a no-op and a
// delivery failure is reported to the caller, who logs and moves on.
package notify

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/spec-kit/smart-support/internal/config"
)

// EmailSender sends plain-text alert emails via SMTP.
type EmailSender struct {
	cfg    config.NotificationConfig
	dialer *gomail.Dialer
}

// NewEmailSender builds a sender from notification config. Returns a
// no-op sender when SMTP is not configured.
func NewEmailSender(cfg config.NotificationConfig) *EmailSender {
	s := &EmailSender{cfg: cfg}
	if s.Enabled() {
		s.dialer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	}
	return s
}

// Enabled reports whether SMTP delivery is configured.
func (s *EmailSender) Enabled() bool {
	return s.cfg.SMTPHost != "" && s.cfg.EmailFrom != "" && s.cfg.EmailTo != ""
}

// Send delivers one plain-text message to the configured recipient.
func (s *EmailSender) Send(subject, body string) error {
	if !s.Enabled() {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.EmailFrom)
	m.SetHeader("To", s.cfg.EmailTo)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
