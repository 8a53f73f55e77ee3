package models

import (
	"time"
)

// Conversation states.
const (
	StateDraft    = "draft"
	StateActive   = "active"
	StateWaiting  = "waiting"
	StateResolved = "resolved"
	StateTimeout  = "timeout"
	StateFailed   = "failed"
)

// Last-sender values.
const (
	SenderAgent    = "agent"
	SenderCustomer = "customer"
)

// Source record kinds a conversation may be linked to.
const (
	SourceBounceLog = "bounce_log"
	SourceInvoice   = "invoice"
	SourceContact   = "contact"
	SourceHRRequest = "hr_request"
)

// Conversation is one bounded task between the agent and one customer or
// employee, driven by a single skill. It owns an ordered log of Messages.
type Conversation struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"comment:Derived reference, skill name + contact name"`
	SkillCode string `gorm:"index;comment:Code of the skill driving this conversation"`
	ContactID uint   `gorm:"index"`
	Phone     string `gorm:"index;comment:Normalized +58 XXX XXXXXXX"`
	State     string `gorm:"index;default:draft"`

	// Generic link to the originating business record.
	SourceModel string `gorm:"index:idx_conversations_source"`
	SourceID    uint   `gorm:"index:idx_conversations_source"`

	LastMessageDate *time.Time
	LastSender      string

	ReminderCount    int `gorm:"default:0"`
	LastReminderDate *time.Time

	ResolvedDate      *time.Time
	ResolutionSummary string `gorm:"type:text"`

	VerificationEmailSentDate  *time.Time
	VerificationEmailRecipient string

	EscalationDate     *time.Time
	EscalationReason   string `gorm:"type:text;comment:Timestamped reasons, appended per escalation"`
	EscalationNotified bool   `gorm:"default:false;comment:True once the escalation email went out"`

	AlternativePhone string `gorm:"comment:Different number volunteered by whoever answered; never rebinds the conversation"`

	Messages []Message `gorm:"foreignKey:ConversationID"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// IsOpen reports whether the conversation still accepts inbound replies.
func (c *Conversation) IsOpen() bool {
	return c.State == StateWaiting || c.State == StateActive
}

// IsTerminal reports whether the conversation reached a final state.
// Terminal states are only left via an explicit retry.
func (c *Conversation) IsTerminal() bool {
	return c.State == StateResolved || c.State == StateTimeout || c.State == StateFailed
}
