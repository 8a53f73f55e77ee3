package models

import (
	"time"
)

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Attachment types as reported by the WhatsApp gateway.
const (
	AttachmentImage    = "image"
	AttachmentDocument = "document"
	AttachmentAudio    = "audio"
	AttachmentVideo    = "video"
)

// Message is one entry of a conversation's append-only log. Inbound messages
// are never mutated after creation; archival only attaches a binary.
type Message struct {
	ID             uint   `gorm:"primaryKey"`
	ConversationID uint   `gorm:"index:idx_messages_dedup;comment:Owning conversation"`
	Direction      string `gorm:"index"`
	Body           string `gorm:"type:text;comment:May be empty for dedup placeholders or attachment-only messages"`
	Timestamp      time.Time

	// Gateway id used for dedup; zero for locally generated rows.
	GatewayMessageID int64 `gorm:"index:idx_messages_dedup"`

	AttachmentURL  string `gorm:"comment:Short-lived public URL from the gateway"`
	AttachmentType string

	// AI usage counters, set on outbound messages produced by the model.
	AIInputTokens  int `gorm:"default:0"`
	AIOutputTokens int `gorm:"default:0"`

	Archive *MessageAttachment `gorm:"foreignKey:MessageID"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// HasContent reports whether the message carries anything the history
// builder should show the model.
func (m *Message) HasContent() bool {
	return m.Body != "" || m.AttachmentURL != ""
}

// MessageAttachment is the archived copy of a gateway attachment, written
// once per message before the gateway URL expires.
type MessageAttachment struct {
	ID        uint   `gorm:"primaryKey"`
	MessageID uint   `gorm:"uniqueIndex;comment:Binary is written once per message"`
	Filename  string
	MimeType  string
	Data      []byte    `gorm:"type:blob"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
