// Package mailer wraps SMTP delivery for verification and escalation mail.
package mailer

import (
	"fmt"

	"github.com/rs/zerolog/log"
	gomail "gopkg.in/gomail.v2"
)

// Email is one outbound message.
type Email struct {
	From     string
	To       []string
	Subject  string
	BodyHTML string
}

// Mailer sends email over SMTP.
type Mailer struct {
	host     string
	port     int
	username string
	password string
}

// NewMailer creates an SMTP mailer. host is mandatory.
func NewMailer(host string, port int, username, password string) (*Mailer, error) {
	if host == "" {
		return nil, fmt.Errorf("smtp host cannot be empty")
	}
	if port == 0 {
		port = 587
	}
	return &Mailer{host: host, port: port, username: username, password: password}, nil
}

// Send delivers the email.
func (m *Mailer) Send(e Email) error {
	if len(e.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", e.From)
	msg.SetHeader("To", e.To...)
	msg.SetHeader("Subject", e.Subject)
	msg.SetBody("text/html", e.BodyHTML)

	dialer := gomail.NewDialer(m.host, m.port, m.username, m.password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email %q to %v: %w", e.Subject, e.To, err)
	}
	log.Info().Strs("to", e.To).Str("subject", e.Subject).Msg("Email sent")
	return nil
}
