package services

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"glenda/internal/models"
)

// HRCollectionService orchestrates employee data refresh campaigns: it
// opens the request record, spins up the conversation and handles manual
// cancellation.
type HRCollectionService struct {
	db            *gorm.DB
	conversations *ConversationService
	gateway       WhatsAppGateway
}

func NewHRCollectionService(db *gorm.DB, conversations *ConversationService, gateway WhatsAppGateway) *HRCollectionService {
	return &HRCollectionService{db: db, conversations: conversations, gateway: gateway}
}

// StartRequest opens a data collection request for an employee and starts
// the WhatsApp conversation. The employee needs a phone on file, mobile
// preferred over work, and no other request in flight.
func (s *HRCollectionService) StartRequest(employeeID uint) (*models.HRDataCollectionRequest, error) {
	var emp models.Employee
	if err := s.db.First(&emp, employeeID).Error; err != nil {
		return nil, fmt.Errorf("load employee %d: %w", employeeID, err)
	}
	phone := emp.MobilePhone
	if phone == "" {
		phone = emp.WorkPhone
	}
	if phone == "" {
		return nil, fmt.Errorf("employee %d has no phone on file", employeeID)
	}
	if valid, err := s.gateway.ValidatePhone(phone); err != nil {
		// Only an explicit negative verdict blocks the start.
		log.Warn().Err(err).Uint("employeeID", employeeID).Msg("Phone validation unavailable, continuing")
	} else if !valid {
		return nil, fmt.Errorf("employee %d's phone %s has no WhatsApp account", employeeID, phone)
	}

	var inFlight int64
	err := s.db.Model(&models.HRDataCollectionRequest{}).
		Where("employee_id = ? AND state IN ?", employeeID,
			[]string{models.HRRequestDraft, models.HRRequestInProgress}).
		Count(&inFlight).Error
	if err != nil {
		return nil, fmt.Errorf("check requests for employee %d: %w", employeeID, err)
	}
	if inFlight > 0 {
		return nil, fmt.Errorf("employee %d already has a data collection request in flight", employeeID)
	}

	req := &models.HRDataCollectionRequest{EmployeeID: employeeID, State: models.HRRequestDraft}
	if err := s.db.Create(req).Error; err != nil {
		return nil, fmt.Errorf("create hr request: %w", err)
	}

	conv, err := s.conversations.Create(models.SkillHRDataCollection, emp.ContactID, phone, models.SourceHRRequest, req.ID)
	if err != nil {
		return nil, err
	}
	req.ConversationID = &conv.ID
	req.State = models.HRRequestInProgress
	if err := s.db.Save(req).Error; err != nil {
		return nil, fmt.Errorf("save hr request %d: %w", req.ID, err)
	}

	if err := s.conversations.Start(conv); err != nil {
		return nil, err
	}
	log.Info().Uint("requestID", req.ID).Uint("employeeID", employeeID).Msg("HR data collection started")
	return req, nil
}

// Cancel aborts a request and closes its conversation if still open.
func (s *HRCollectionService) Cancel(requestID uint) error {
	var req models.HRDataCollectionRequest
	if err := s.db.First(&req, requestID).Error; err != nil {
		return fmt.Errorf("load hr request %d: %w", requestID, err)
	}
	if req.State == models.HRRequestCompleted || req.State == models.HRRequestCancelled {
		return fmt.Errorf("hr request %d is already %s", requestID, req.State)
	}
	req.State = models.HRRequestCancelled
	if err := s.db.Save(&req).Error; err != nil {
		return fmt.Errorf("save hr request %d: %w", requestID, err)
	}

	if req.ConversationID != nil {
		var conv models.Conversation
		if err := s.db.First(&conv, *req.ConversationID).Error; err == nil && !conv.IsTerminal() {
			if err := s.conversations.ForceResolve(&conv, "solicitud de datos cancelada"); err != nil {
				log.Error().Err(err).Uint("conversationID", conv.ID).Msg("Could not close conversation of cancelled request")
			}
		}
	}
	log.Info().Uint("requestID", requestID).Msg("HR data collection cancelled")
	return nil
}
