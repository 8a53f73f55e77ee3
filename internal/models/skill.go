package models

import "time"

// Skill codes shipped with the engine.
const (
	SkillBounceResolution = "bounce_resolution"
	SkillBillReminder     = "bill_reminder"
	SkillBillingSupport   = "billing_support"
	SkillHRDataCollection = "hr_data_collection"
)

// Skill is one row of the static skill catalog. The engine looks skills up
// by code at runtime and never mutates them.
type Skill struct {
	ID          uint   `gorm:"primaryKey"`
	Code        string `gorm:"uniqueIndex"`
	Name        string
	Active      bool   `gorm:"default:true"`
	Description string `gorm:"type:text"`

	ModelName             string `gorm:"comment:Claude model used for this skill"`
	MaxTurns              int    `gorm:"default:5;comment:Counted inbound turns before the conversation fails"`
	MaxReminders          int    `gorm:"default:2"`
	ReminderIntervalHours int    `gorm:"default:24"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
