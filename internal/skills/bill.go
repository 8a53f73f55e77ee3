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

// Bill reminder tokens.
const (
	BillPaid      = "PAID"
	BillExtension = "EXTENSION"
)

// BillReminder nudges a contact about an overdue invoice and records
// whether they report it paid or ask for more time.
type BillReminder struct {
	db       *gorm.DB
	settings *settings.Store
}

func NewBillReminder(db *gorm.DB, st *settings.Store) *BillReminder {
	return &BillReminder{db: db, settings: st}
}

func (s *BillReminder) Code() string { return models.SkillBillReminder }

func (s *BillReminder) load(conv *models.Conversation) (*models.Invoice, *models.Contact, error) {
	var invoice models.Invoice
	if err := s.db.First(&invoice, conv.SourceID).Error; err != nil {
		return nil, nil, fmt.Errorf("load invoice %d: %w", conv.SourceID, err)
	}
	var contact models.Contact
	if err := s.db.First(&contact, conv.ContactID).Error; err != nil {
		return nil, nil, fmt.Errorf("load contact %d: %w", conv.ContactID, err)
	}
	return &invoice, &contact, nil
}

func (s *BillReminder) SystemPrompt(conv *models.Conversation) (string, error) {
	invoice, contact, err := s.load(conv)
	if err != nil {
		return "", err
	}
	agent := s.settings.Get(settings.KeyAgentDisplayName, "Glenda")
	institution := s.settings.Get(settings.KeyInstitutionDisplayName, "la institución")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Eres %s, asistente administrativa de %s. ", agent, institution)
	sb.WriteString("Estás recordando por WhatsApp a un representante una factura con saldo pendiente.\n\n")
	fmt.Fprintf(&sb, "Representante: %s\n", contact.Name)
	fmt.Fprintf(&sb, "Factura: %s\n", invoice.Name)
	fmt.Fprintf(&sb, "Saldo pendiente: %.2f %s\n", invoice.AmountResidual, invoice.Currency)
	if invoice.DateDue != nil {
		fmt.Fprintf(&sb, "Fecha de vencimiento: %s\n", invoice.DateDue.Format("02/01/2006"))
	}
	sb.WriteString(`
Reglas:
- Escribe en español venezolano, tono amable y respetuoso, sin presionar. Mensajes cortos.
- No negocies montos ni aceptes promesas de pago con condiciones. Solo registra lo que el representante indique.
- Si el representante indica que ya pagó, agradece, pide que conserve el comprobante e incluye la línea RESOLVED:PAID.
- Si pide una prórroga o indica una fecha en la que pagará, agradece e incluye la línea RESOLVED:EXTENSION.
- Si la conversación se complica, hay un reclamo sobre el monto, o piden hablar con una persona, añade la línea ACTION:ESCALATE:<motivo breve>.
- Si responde otra persona y ofrece un número de contacto distinto, añade la línea ACTION:ALTERNATIVE_PHONE:<número>.
- Las líneas de marcadores van separadas del texto visible.
`)
	return sb.String(), nil
}

func (s *BillReminder) Greeting(conv *models.Conversation, now time.Time) (string, error) {
	invoice, contact, err := s.load(conv)
	if err != nil {
		return "", err
	}
	agent := s.settings.Get(settings.KeyAgentDisplayName, "Glenda")
	institution := s.settings.Get(settings.KeyInstitutionDisplayName, "la institución")
	return fmt.Sprintf(
		"%s %s, le saluda %s de %s. Le escribo para recordarle con cariño que la factura %s presenta un saldo pendiente de %.2f %s. Si ya realizó el pago, por favor indíquemelo para actualizar nuestros registros. ¡Gracias!",
		vetext.Greeting(now), vetext.FirstName(contact.Name), agent, institution,
		invoice.Name, invoice.AmountResidual, invoice.Currency,
	), nil
}

func (s *BillReminder) ReminderMessage(conv *models.Conversation, final bool) string {
	agent := s.settings.Get(settings.KeyAgentDisplayName, "Glenda")
	if final {
		return fmt.Sprintf(
			"Hola, le escribe %s. Este es mi último intento de contacto sobre la factura pendiente; luego cerraré la conversación. Si ya realizó el pago, por favor indíquemelo. ¡Gracias!",
			agent,
		)
	}
	return fmt.Sprintf(
		"Hola, le escribe %s nuevamente. Quedo atenta a su respuesta sobre la factura pendiente. Si ya realizó el pago, con gusto lo verifico. ¡Gracias!",
		agent,
	)
}

func (s *BillReminder) ProcessAIResponse(conv *models.Conversation, raw string) (*Action, error) {
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
		case BillPaid:
			action.Summary = "El representante indica que la factura ya fue pagada."
		case BillExtension:
			action.Summary = "El representante solicitó una prórroga para el pago."
		default:
			log.Warn().Uint("conversationID", conv.ID).Str("token", markers.ResolutionToken).
				Msg("Ignoring unrecognized resolution token")
			action.Resolve = false
			action.ResolutionToken = ""
		}
		if action.Resolve && action.Message == "" {
			action.Message = "¡Muchas gracias por su respuesta! Que tenga buen día."
		}
	}
	return action, nil
}

// OnResolve leaves an audit note on the invoice. Payment reconciliation
// stays in the accounting system; the engine only records the reply.
func (s *BillReminder) OnResolve(conv *models.Conversation, action *Action) error {
	note := models.Note{
		RefModel: "invoice",
		RefID:    conv.SourceID,
		Body:     fmt.Sprintf("WhatsApp: %s", action.Summary),
	}
	if err := s.db.Create(&note).Error; err != nil {
		return fmt.Errorf("note invoice %d: %w", conv.SourceID, err)
	}
	return nil
}
