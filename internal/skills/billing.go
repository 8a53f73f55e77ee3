package skills

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"glenda/internal/models"
	"glenda/internal/settings"
	"glenda/internal/vetext"
)

// Billing support tokens.
const (
	BillingDone    = "DONE"
	BillingDispute = "DISPUTE"
)

// BillingSupport answers billing questions from a contact: outstanding
// balance, invoice detail, payment channels. Started on demand rather than
// by a campaign.
type BillingSupport struct {
	db       *gorm.DB
	settings *settings.Store
}

func NewBillingSupport(db *gorm.DB, st *settings.Store) *BillingSupport {
	return &BillingSupport{db: db, settings: st}
}

func (s *BillingSupport) Code() string { return models.SkillBillingSupport }

func (s *BillingSupport) load(conv *models.Conversation) (*models.Contact, []models.Invoice, error) {
	var contact models.Contact
	if err := s.db.First(&contact, conv.ContactID).Error; err != nil {
		return nil, nil, fmt.Errorf("load contact %d: %w", conv.ContactID, err)
	}
	var invoices []models.Invoice
	err := s.db.Where("contact_id = ? AND posted = ? AND payment_state <> ?",
		contact.ID, true, "paid").
		Order("date_due").
		Find(&invoices).Error
	if err != nil {
		return nil, nil, fmt.Errorf("load invoices for contact %d: %w", contact.ID, err)
	}
	return &contact, invoices, nil
}

func (s *BillingSupport) SystemPrompt(conv *models.Conversation) (string, error) {
	contact, invoices, err := s.load(conv)
	if err != nil {
		return "", err
	}
	agent := s.settings.Get(settings.KeyAgentDisplayName, "Glenda")
	institution := s.settings.Get(settings.KeyInstitutionDisplayName, "la institución")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Eres %s, asistente administrativa de %s. ", agent, institution)
	sb.WriteString("Atiendes por WhatsApp consultas de facturación de un representante.\n\n")
	fmt.Fprintf(&sb, "Representante: %s\n", contact.Name)
	if len(invoices) == 0 {
		sb.WriteString("El representante no tiene facturas pendientes.\n")
	} else {
		sb.WriteString("Facturas con saldo pendiente:\n")
		for _, inv := range invoices {
			due := "sin fecha"
			if inv.DateDue != nil {
				due = inv.DateDue.Format("02/01/2006")
			}
			fmt.Fprintf(&sb, "- %s: %.2f %s, vence %s\n", inv.Name, inv.AmountResidual, inv.Currency, due)
		}
	}
	sb.WriteString(`
Reglas:
- Escribe en español venezolano, tono cordial. Mensajes cortos aptos para WhatsApp.
- Responde solo con la información listada arriba. No inventes montos, fechas ni referencias.
- Cuando la consulta quede atendida y el representante no necesite más nada, despídete e incluye la línea RESOLVED:DONE.
- Si el representante disputa un monto o una factura, regístralo, indícale que el caso pasa al equipo administrativo e incluye las líneas RESOLVED:DISPUTE y ACTION:ESCALATE:<detalle de la disputa>.
- Si la conversación se sale del ámbito de facturación o piden hablar con una persona, añade la línea ACTION:ESCALATE:<motivo breve>.
- Las líneas de marcadores van separadas del texto visible.
`)
	return sb.String(), nil
}

func (s *BillingSupport) Greeting(conv *models.Conversation, now time.Time) (string, error) {
	contact, _, err := s.load(conv)
	if err != nil {
		return "", err
	}
	agent := s.settings.Get(settings.KeyAgentDisplayName, "Glenda")
	institution := s.settings.Get(settings.KeyInstitutionDisplayName, "la institución")
	return fmt.Sprintf(
		"%s %s, le saluda %s de %s. Con gusto le atiendo su consulta de facturación. ¿En qué puedo ayudarle?",
		vetext.Greeting(now), vetext.FirstName(contact.Name), agent, institution,
	), nil
}

func (s *BillingSupport) ReminderMessage(conv *models.Conversation, final bool) string {
	agent := s.settings.Get(settings.KeyAgentDisplayName, "Glenda")
	if final {
		return fmt.Sprintf(
			"Hola, le escribe %s. Este es mi último intento de contacto por esta consulta; si no recibo respuesta cerraré la conversación. Quedo atenta por si necesita algo más.",
			agent,
		)
	}
	return fmt.Sprintf(
		"Hola, le escribe %s. ¿Pudo revisar la información de facturación que conversamos? Quedo atenta por si necesita algo más.",
		agent,
	)
}

func (s *BillingSupport) ProcessAIResponse(conv *models.Conversation, raw string) (*Action, error) {
	markers, visible := ParseMarkers(raw)
	action := &Action{
		Message:          visible,
		Escalate:         markers.Escalate,
		EscalationReason: markers.EscalationReason,
		AlternativePhone: markers.AlternativePhone,
	}
	if markers.Resolved {
		action.Resolve = true
		action.ResolutionToken = markers.ResolutionToken
		switch markers.ResolutionToken {
		case BillingDone:
			action.Summary = "Consulta de facturación atendida."
		case BillingDispute:
			action.Summary = "El representante disputó una factura; caso escalado al equipo administrativo."
		default:
			log.Warn().Uint("conversationID", conv.ID).Str("token", markers.ResolutionToken).
				Msg("Ignoring unrecognized resolution token")
			action.Resolve = false
			action.ResolutionToken = ""
		}
		if action.Resolve && action.Message == "" {
			action.Message = "¡Gracias por comunicarse con nosotros! Que tenga buen día."
		}
	}
	return action, nil
}

// OnResolve records the outcome as a note on the contact.
func (s *BillingSupport) OnResolve(conv *models.Conversation, action *Action) error {
	note := models.Note{
		RefModel: "contact",
		RefID:    conv.ContactID,
		Body:     fmt.Sprintf("WhatsApp: %s", action.Summary),
	}
	if err := s.db.Create(&note).Error; err != nil {
		return fmt.Errorf("note contact %d: %w", conv.ContactID, err)
	}
	return nil
}
