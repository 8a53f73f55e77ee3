package models

import "time"

// Parameter is one entry of the flat key/value runtime configuration store.
// Writes are idempotent with last-writer-wins semantics.
type Parameter struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"uniqueIndex"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Note is a structured audit entry attached to a conversation or business
// record. It replaces the prose chatter channel; nothing parses notes back.
type Note struct {
	ID        uint   `gorm:"primaryKey"`
	RefModel  string `gorm:"index:idx_notes_ref"`
	RefID     uint   `gorm:"index:idx_notes_ref"`
	Body      string `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
