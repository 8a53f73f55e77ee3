package models

import "time"

// Contact is the customer/representative record the engine reads names and
// emails from. Owned by the back office; the engine only appends notes and
// updates email fields through bounce resolution.
type Contact struct {
	ID     uint   `gorm:"primaryKey"`
	Name   string `gorm:"index"`
	Email  string `gorm:"comment:One or more addresses separated by semicolons"`
	Phone  string
	Mobile string

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Bounce log states.
const (
	BounceStateNew            = "new"
	BounceStateContacted      = "contacted"
	BounceStateAkdemiaPending = "akdemia_pending"
	BounceStateResolved       = "resolved"
)

// BounceLog records one bounced email incident to be resolved over WhatsApp.
type BounceLog struct {
	ID           uint   `gorm:"primaryKey"`
	ContactID    uint   `gorm:"index"`
	BouncedEmail string `gorm:"index"`
	BounceReason string
	NewEmail     string
	State        string `gorm:"index;default:new"`

	// Akdemia (school platform) context.
	InAkdemia    bool
	FamilyEmails string `gorm:"type:text;comment:JSON family/parents email context from Akdemia"`

	WhatsAppContacted   bool
	WhatsAppContactDate *time.Time
	ConversationID      *uint
	ResolvedDate        *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Invoice is the read-mostly snapshot of a receivable the bill-reminder and
// billing-support skills talk about.
type Invoice struct {
	ID             uint   `gorm:"primaryKey"`
	ContactID      uint   `gorm:"index"`
	Name           string `gorm:"comment:Invoice reference, e.g. FAC/2026/0042"`
	Currency       string `gorm:"default:USD"`
	AmountTotal    float64
	AmountResidual float64
	DateDue        *time.Time
	PaymentState   string `gorm:"index;comment:not_paid, partial or paid"`
	Posted         bool   `gorm:"default:true"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Employee is the HR record the data-collection skill reads and, on resolve,
// writes back to. Name and WorkEmail are protected and never written by the
// engine.
type Employee struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"index"`
	WorkEmail string
	WorkPhone string

	MobilePhone      string
	IdentificationID string `gorm:"comment:Cedula number, e.g. V15128008"`
	IDExpiryDate     *time.Time
	RIF              string `gorm:"comment:Normalized RIF, e.g. V-15128008-9"`
	RIFExpiryDate    *time.Time

	PrivateStreet  string
	PrivateCity    string
	PrivateState   string
	PrivateZip     string
	PrivateCountry string

	EmergencyContact string
	EmergencyPhone   string

	ContactID uint `gorm:"index;comment:Linked contact used for conversations"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// EmployeeAttachment stores identification documents (cedula/RIF photos)
// captured during HR data collection.
type EmployeeAttachment struct {
	ID         uint   `gorm:"primaryKey"`
	EmployeeID uint   `gorm:"index"`
	Name       string `gorm:"comment:e.g. Cedula - V15128008.jpg"`
	MimeType   string
	Data       []byte    `gorm:"type:blob"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}
