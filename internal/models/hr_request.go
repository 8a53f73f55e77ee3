package models

import "time"

// HR data collection request states.
const (
	HRRequestDraft      = "draft"
	HRRequestInProgress = "in_progress"
	HRRequestPartial    = "partial"
	HRRequestCompleted  = "completed"
	HRRequestCancelled  = "cancelled"
)

// HRDataCollectionRequest tracks one employee-data refresh campaign run over
// WhatsApp. Each phase records whether it completed and the raw value the
// employee confirmed.
type HRDataCollectionRequest struct {
	ID         uint `gorm:"primaryKey"`
	EmployeeID uint `gorm:"index"`
	State      string `gorm:"index;default:draft"`

	ConversationID *uint

	PhonePhaseDone bool
	PhonePhaseDate *time.Time
	PhoneValue     string

	CedulaPhaseDone     bool
	CedulaPhaseDate     *time.Time
	CedulaValue         string
	CedulaExpiry        string `gorm:"comment:Validated, YYYY-MM-DD"`
	CedulaPhotoReceived bool
	CedulaPhotoDate     *time.Time

	RIFPhaseDone     bool
	RIFPhaseDate     *time.Time
	RIFValue         string
	RIFExpiry        string `gorm:"comment:Validated, YYYY-MM-DD"`
	RIFPhotoReceived bool
	RIFPhotoDate     *time.Time

	AddressPhaseDone bool
	AddressPhaseDate *time.Time
	AddressValue     string `gorm:"type:text"`

	EmergencyPhaseDone bool
	EmergencyPhaseDate *time.Time
	EmergencyValue     string `gorm:"comment:Name;+58 XXX XXXXXXX"`

	CompletedDate *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// PhasesCompleted counts finished phases, 0 through 5.
func (r *HRDataCollectionRequest) PhasesCompleted() int {
	n := 0
	for _, done := range []bool{
		r.PhonePhaseDone,
		r.CedulaPhaseDone,
		r.RIFPhaseDone,
		r.AddressPhaseDone,
		r.EmergencyPhaseDone,
	} {
		if done {
			n++
		}
	}
	return n
}

// Progress returns completion as a percentage.
func (r *HRDataCollectionRequest) Progress() int {
	return r.PhasesCompleted() * 100 / 5
}
