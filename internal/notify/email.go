// Package notify is the activity/notification sink for review events. The
// engine fires events and forgets them; delivery failures are logged and
// never surface to the caller.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"
)

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Email sends notification mail over SMTP.
type Email struct {
	config EmailConfig
	server string
	auth   smtp.Auth
}

func NewEmail(config EmailConfig) *Email {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Email{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (e *Email) IsConfigured() bool {
	return e.config.Host != "" && e.config.Port != "" && e.config.From != ""
}

func (e *Email) Send(to []string, subject, body string) error {
	if !e.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := e.config.From
	if e.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", e.config.FromName, e.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(e.server, e.auth, e.config.From, to, msg)
}
