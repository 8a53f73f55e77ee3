// Package services holds the conversation engine: inbound polling, state
// transitions, history assembly, credit guarding and the dashboard facade.
package services

import (
	"time"

	"glenda/internal/adapters/claude"
	"glenda/internal/adapters/mailer"
	"glenda/internal/adapters/whatsapp"
)

// WhatsAppGateway is the outbound and polling surface of the WhatsApp API.
type WhatsAppGateway interface {
	SendMessage(phone, text string) (int64, error)
	FetchReceived(limit int) ([]whatsapp.ReceivedMessage, error)
	ValidatePhone(phone string) (bool, error)
	Subscription() (*whatsapp.Subscription, error)
}

// LLMGateway runs one completion over an assembled history.
type LLMGateway interface {
	Generate(model, system string, messages []claude.Message) (*claude.Reply, error)
}

// Mailer delivers verification and escalation email.
type Mailer interface {
	Send(e mailer.Email) error
}

// Clock abstracts time for the reminder and timeout policies.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
