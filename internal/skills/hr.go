package skills

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"glenda/internal/models"
	"glenda/internal/settings"
	"glenda/internal/vetext"
)

// HR data collection token.
const HRCompleted = "COMPLETED"

// Phase fields accepted in ACTION:PHASE_COMPLETE markers.
const (
	PhasePhone        = "phone"
	PhaseCedula       = "cedula"
	PhaseCedulaExpiry = "cedula_expiry"
	PhaseRIF          = "rif_number"
	PhaseRIFExpiry    = "rif_expiry"
	PhaseAddress      = "address"
	PhaseEmergency    = "emergency"
)

// HRDataCollection walks an employee through refreshing their personal data
// in five phases: mobile phone, cedula, RIF, home address and emergency
// contact. Phase progress is persisted turn by turn; the employee record is
// only written once the conversation resolves.
type HRDataCollection struct {
	db         *gorm.DB
	settings   *settings.Store
	httpClient *resty.Client
}

func NewHRDataCollection(db *gorm.DB, st *settings.Store) *HRDataCollection {
	return &HRDataCollection{
		db:         db,
		settings:   st,
		httpClient: resty.New().SetTimeout(30 * time.Second),
	}
}

func (s *HRDataCollection) Code() string { return models.SkillHRDataCollection }

func (s *HRDataCollection) load(conv *models.Conversation) (*models.HRDataCollectionRequest, *models.Employee, error) {
	var req models.HRDataCollectionRequest
	if err := s.db.First(&req, conv.SourceID).Error; err != nil {
		return nil, nil, fmt.Errorf("load hr request %d: %w", conv.SourceID, err)
	}
	var emp models.Employee
	if err := s.db.First(&emp, req.EmployeeID).Error; err != nil {
		return nil, nil, fmt.Errorf("load employee %d: %w", req.EmployeeID, err)
	}
	return &req, &emp, nil
}

func (s *HRDataCollection) SystemPrompt(conv *models.Conversation) (string, error) {
	req, emp, err := s.load(conv)
	if err != nil {
		return "", err
	}
	agent := s.settings.Get(settings.KeyAgentDisplayName, "Glenda")
	institution := s.settings.Get(settings.KeyInstitutionDisplayName, "la institución")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Eres %s, asistente de recursos humanos de %s. ", agent, institution)
	sb.WriteString("Estás actualizando por WhatsApp los datos personales de un empleado, en cinco fases.\n\n")
	fmt.Fprintf(&sb, "Empleado: %s\n", emp.Name)
	fmt.Fprintf(&sb, "Datos actuales en el sistema:\n")
	fmt.Fprintf(&sb, "- Teléfono móvil: %s\n", orEmpty(emp.MobilePhone))
	fmt.Fprintf(&sb, "- Cédula: %s\n", orEmpty(emp.IdentificationID))
	fmt.Fprintf(&sb, "- RIF: %s\n", orEmpty(emp.RIF))
	fmt.Fprintf(&sb, "- Dirección: %s\n", orEmpty(emp.PrivateStreet))
	fmt.Fprintf(&sb, "- Contacto de emergencia: %s\n", orEmpty(emp.EmergencyContact))
	sb.WriteString("\nEstado de las fases:\n")
	fmt.Fprintf(&sb, "1. Teléfono móvil: %s\n", phaseStatus(req.PhonePhaseDone))
	fmt.Fprintf(&sb, "2. Cédula (número, vencimiento y foto): %s\n", phaseStatus(req.CedulaPhaseDone))
	fmt.Fprintf(&sb, "3. RIF (número, vencimiento y foto): %s\n", phaseStatus(req.RIFPhaseDone))
	fmt.Fprintf(&sb, "4. Dirección de habitación: %s\n", phaseStatus(req.AddressPhaseDone))
	fmt.Fprintf(&sb, "5. Contacto de emergencia: %s\n", phaseStatus(req.EmergencyPhaseDone))
	sb.WriteString(`
Reglas:
- Escribe en español venezolano, tono cercano y profesional. Una fase a la vez, mensajes cortos.
- Confirma cada dato repitiéndolo antes de darlo por bueno.
- Al completar una fase, incluye líneas de marcador con el dato confirmado:
  ACTION:PHASE_COMPLETE:phone:<número> para el teléfono.
  ACTION:PHASE_COMPLETE:cedula:<número> y ACTION:PHASE_COMPLETE:cedula_expiry:<MM/AAAA> para la cédula.
  ACTION:PHASE_COMPLETE:rif_number:<número> y ACTION:PHASE_COMPLETE:rif_expiry:<AAAA-MM-DD> para el RIF.
  ACTION:PHASE_COMPLETE:address:<dirección completa> para la dirección.
  ACTION:PHASE_COMPLETE:emergency:<nombre>;<teléfono> para el contacto de emergencia.
- Cuando el empleado envíe la foto de la cédula o del RIF, agradece e incluye la línea ACTION:SAVE_DOCUMENT:cedula o ACTION:SAVE_DOCUMENT:rif según corresponda.
- Si el nombre en el RIF no coincide con el del empleado, NO aceptes el dato: añade la línea ACTION:ESCALATE:<explica la discrepancia>.
- Nunca pidas ni aceptes cambios de nombre ni de correo corporativo.
- Cuando las cinco fases estén completas, despídete agradeciendo e incluye la línea RESOLVED:COMPLETED.
- Si el empleado no puede continuar o pide hablar con una persona, añade la línea ACTION:ESCALATE:<motivo breve>.
- Las líneas de marcadores van separadas del texto visible.
`)
	return sb.String(), nil
}

func (s *HRDataCollection) Greeting(conv *models.Conversation, now time.Time) (string, error) {
	_, emp, err := s.load(conv)
	if err != nil {
		return "", err
	}
	agent := s.settings.Get(settings.KeyAgentDisplayName, "Glenda")
	institution := s.settings.Get(settings.KeyInstitutionDisplayName, "la institución")
	return fmt.Sprintf(
		"%s %s, le saluda %s de %s. Estamos actualizando los datos del personal y me gustaría confirmar su información con usted: teléfono, cédula, RIF, dirección y contacto de emergencia. Son solo unos minutos. ¿Comenzamos con su número de teléfono móvil?",
		vetext.Greeting(now), vetext.FirstName(emp.Name), agent, institution,
	), nil
}

func (s *HRDataCollection) ReminderMessage(conv *models.Conversation, final bool) string {
	agent := s.settings.Get(settings.KeyAgentDisplayName, "Glenda")
	if final {
		return fmt.Sprintf(
			"Hola, le escribe %s de recursos humanos. Este es mi último intento de contacto para completar la actualización de sus datos; si no recibo respuesta cerraré la solicitud. ¡Gracias!",
			agent,
		)
	}
	return fmt.Sprintf(
		"Hola, le escribe %s de recursos humanos. Seguimos pendientes de completar la actualización de sus datos. Cuando tenga unos minutos continuamos donde quedamos. ¡Gracias!",
		agent,
	)
}

func (s *HRDataCollection) ProcessAIResponse(conv *models.Conversation, raw string) (*Action, error) {
	req, emp, err := s.load(conv)
	if err != nil {
		return nil, err
	}

	markers, visible := ParseMarkers(raw)
	action := &Action{
		Message:          visible,
		Escalate:         markers.Escalate,
		EscalationReason: markers.EscalationReason,
		AlternativePhone: markers.AlternativePhone,
	}

	now := time.Now().UTC()
	for _, pc := range markers.PhaseCompletions {
		s.applyPhase(req, pc, now)
	}
	switch markers.SaveDocument {
	case "":
	case "cedula", "rif":
		// The marker records that the document arrived. Archival of the
		// binary may still fail and is retried manually.
		if markers.SaveDocument == "cedula" {
			req.CedulaPhotoReceived = true
			req.CedulaPhotoDate = &now
		} else {
			req.RIFPhotoReceived = true
			req.RIFPhotoDate = &now
		}
		if err := s.saveDocument(conv, req, emp, markers.SaveDocument); err != nil {
			log.Error().Err(err).Uint("conversationID", conv.ID).Str("document", markers.SaveDocument).Msg("Could not save identification document")
		}
	default:
		log.Warn().Uint("conversationID", conv.ID).Str("document", markers.SaveDocument).Msg("Ignoring unknown document kind")
	}
	if req.State == models.HRRequestDraft {
		req.State = models.HRRequestInProgress
	}
	if err := s.db.Save(req).Error; err != nil {
		return nil, fmt.Errorf("save hr request %d: %w", req.ID, err)
	}

	if markers.Resolved {
		if markers.ResolutionToken != HRCompleted {
			log.Warn().Uint("conversationID", conv.ID).Str("token", markers.ResolutionToken).
				Msg("Ignoring unrecognized resolution token")
			return action, nil
		}
		action.Resolve = true
		action.ResolutionToken = markers.ResolutionToken
		action.Summary = fmt.Sprintf("Actualización de datos completada (%d/5 fases).", req.PhasesCompleted())
		if action.Message == "" {
			action.Message = "¡Listo, eso era todo! Muchas gracias por su tiempo. Que tenga buen día."
		}
	}

	return action, nil
}

// applyPhase validates a phase value before persisting it. A value that does
// not parse is dropped and the phase stays open, so the model keeps asking.
func (s *HRDataCollection) applyPhase(req *models.HRDataCollectionRequest, pc PhaseCompletion, now time.Time) {
	switch pc.Field {
	case PhasePhone:
		phone, err := vetext.NormalizePhone(pc.Value)
		if err != nil {
			log.Warn().Err(err).Str("value", pc.Value).Msg("Ignoring unparseable phone phase value")
			return
		}
		req.PhonePhaseDone = true
		req.PhonePhaseDate = &now
		req.PhoneValue = phone
	case PhaseCedula:
		req.CedulaPhaseDone = true
		req.CedulaPhaseDate = &now
		req.CedulaValue = vetext.NormalizeCedula(pc.Value)
	case PhaseCedulaExpiry:
		exp, err := vetext.ParseCedulaExpiry(pc.Value)
		if err != nil {
			log.Warn().Err(err).Str("value", pc.Value).Msg("Ignoring unparseable cedula expiry")
			return
		}
		req.CedulaExpiry = exp.Format("2006-01-02")
	case PhaseRIF:
		rif, err := vetext.NormalizeRIF(pc.Value)
		if err != nil {
			log.Warn().Err(err).Str("value", pc.Value).Msg("Ignoring unparseable RIF phase value")
			return
		}
		req.RIFPhaseDone = true
		req.RIFPhaseDate = &now
		req.RIFValue = rif
	case PhaseRIFExpiry:
		if _, err := time.Parse("2006-01-02", pc.Value); err != nil {
			log.Warn().Err(err).Str("value", pc.Value).Msg("Ignoring unparseable RIF expiry")
			return
		}
		req.RIFExpiry = pc.Value
	case PhaseAddress:
		req.AddressPhaseDone = true
		req.AddressPhaseDate = &now
		req.AddressValue = pc.Value
	case PhaseEmergency:
		req.EmergencyPhaseDone = true
		req.EmergencyPhaseDate = &now
		req.EmergencyValue = pc.Value
	default:
		log.Warn().Str("field", pc.Field).Msg("Ignoring unknown phase completion field")
	}
}

// saveDocument stores the most recent inbound image or document of the
// conversation as an employee attachment named after the document. Prefers
// the archived binary; falls back to fetching the gateway URL while it is
// still alive.
func (s *HRDataCollection) saveDocument(conv *models.Conversation, req *models.HRDataCollectionRequest, emp *models.Employee, kind string) error {
	var msg models.Message
	err := s.db.Preload("Archive").
		Where("conversation_id = ? AND direction = ? AND attachment_type IN ?",
			conv.ID, models.DirectionInbound, []string{models.AttachmentImage, models.AttachmentDocument}).
		Order("timestamp DESC").
		First(&msg).Error
	if err != nil {
		return fmt.Errorf("no inbound image or document to save: %w", err)
	}

	var data []byte
	mime := "image/jpeg"
	if msg.Archive != nil {
		data = msg.Archive.Data
		mime = msg.Archive.MimeType
	} else {
		resp, err := s.httpClient.R().Get(msg.AttachmentURL)
		if err != nil {
			return fmt.Errorf("fetch attachment: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("fetch attachment: status %s", resp.Status())
		}
		data = resp.Body()
		if ct := resp.Header().Get("Content-Type"); ct != "" {
			mime = ct
		}
	}

	number := req.CedulaValue
	label := "Cedula"
	if kind == "rif" {
		number = req.RIFValue
		label = "RIF"
	}
	if number == "" {
		number = emp.IdentificationID
	}

	att := models.EmployeeAttachment{
		EmployeeID: emp.ID,
		Name:       fmt.Sprintf("%s - %s%s", label, number, extensionFor(mime)),
		MimeType:   mime,
		Data:       data,
	}
	if err := s.db.Create(&att).Error; err != nil {
		return fmt.Errorf("store employee attachment: %w", err)
	}
	log.Info().Uint("employeeID", emp.ID).Str("name", att.Name).Msg("Identification document archived")
	return nil
}

// OnResolve writes the confirmed values back to the employee record in one
// transaction. Name and work email are protected and never touched. Values
// that fail normalization are skipped rather than written raw.
func (s *HRDataCollection) OnResolve(conv *models.Conversation, action *Action) error {
	req, emp, err := s.load(conv)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if req.PhonePhaseDone && req.PhoneValue != "" {
			if phone, err := vetext.NormalizePhone(req.PhoneValue); err == nil {
				emp.MobilePhone = phone
			} else {
				log.Warn().Err(err).Uint("employeeID", emp.ID).Msg("Skipping unparseable phone")
			}
		}
		if req.CedulaPhaseDone && req.CedulaValue != "" {
			emp.IdentificationID = vetext.NormalizeCedula(req.CedulaValue)
			if req.CedulaExpiry != "" {
				if exp, err := time.Parse("2006-01-02", req.CedulaExpiry); err == nil {
					emp.IDExpiryDate = &exp
				} else {
					log.Warn().Err(err).Uint("employeeID", emp.ID).Msg("Skipping unparseable cedula expiry")
				}
			}
		}
		if req.RIFPhaseDone && req.RIFValue != "" {
			if rif, err := vetext.NormalizeRIF(req.RIFValue); err == nil {
				emp.RIF = rif
			} else {
				log.Warn().Err(err).Uint("employeeID", emp.ID).Msg("Skipping unparseable RIF")
			}
			if req.RIFExpiry != "" {
				if exp, err := time.Parse("2006-01-02", req.RIFExpiry); err == nil {
					emp.RIFExpiryDate = &exp
				}
			}
		}
		if req.AddressPhaseDone && req.AddressValue != "" {
			emp.PrivateStreet = req.AddressValue
		}
		if req.EmergencyPhaseDone && req.EmergencyValue != "" {
			name, phone, _ := strings.Cut(req.EmergencyValue, ";")
			emp.EmergencyContact = strings.TrimSpace(name)
			if normalized, err := vetext.NormalizePhone(phone); err == nil {
				emp.EmergencyPhone = normalized
			}
		}

		if req.PhasesCompleted() == 5 {
			req.State = models.HRRequestCompleted
			req.CompletedDate = &now
		} else {
			req.State = models.HRRequestPartial
		}

		if err := tx.Save(emp).Error; err != nil {
			return fmt.Errorf("save employee %d: %w", emp.ID, err)
		}
		if err := tx.Save(req).Error; err != nil {
			return fmt.Errorf("save hr request %d: %w", req.ID, err)
		}
		return nil
	})
}

func phaseStatus(done bool) string {
	if done {
		return "completada"
	}
	return "pendiente"
}

func orEmpty(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(sin registrar)"
	}
	return v
}

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "application/pdf":
		return ".pdf"
	default:
		return ".jpg"
	}
}
