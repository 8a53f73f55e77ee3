package skills

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"glenda/internal/models"
	"glenda/internal/settings"
	"glenda/internal/vetext"
)

// Bounce resolution tokens.
const (
	BounceRestore    = "RESTORE"
	BounceRemoveOnly = "REMOVE_ONLY"
	BounceDeclined   = "DECLINED"
)

// BounceResolution handles bounced-email repair conversations: confirm the
// address with the contact, capture a correction, or drop the subscription.
type BounceResolution struct {
	db       *gorm.DB
	settings *settings.Store
}

func NewBounceResolution(db *gorm.DB, st *settings.Store) *BounceResolution {
	return &BounceResolution{db: db, settings: st}
}

func (s *BounceResolution) Code() string { return models.SkillBounceResolution }

func (s *BounceResolution) load(conv *models.Conversation) (*models.BounceLog, *models.Contact, error) {
	var bounce models.BounceLog
	if err := s.db.First(&bounce, conv.SourceID).Error; err != nil {
		return nil, nil, fmt.Errorf("load bounce log %d: %w", conv.SourceID, err)
	}
	var contact models.Contact
	if err := s.db.First(&contact, conv.ContactID).Error; err != nil {
		return nil, nil, fmt.Errorf("load contact %d: %w", conv.ContactID, err)
	}
	return &bounce, &contact, nil
}

func (s *BounceResolution) SystemPrompt(conv *models.Conversation) (string, error) {
	bounce, contact, err := s.load(conv)
	if err != nil {
		return "", err
	}

	agent := s.settings.Get(settings.KeyAgentDisplayName, "Glenda")
	institution := s.settings.Get(settings.KeyInstitutionDisplayName, "la institución")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Eres %s, asistente administrativa de %s. ", agent, institution)
	sb.WriteString("Estás conversando por WhatsApp con un representante cuyo correo electrónico registrado está rebotando.\n\n")
	fmt.Fprintf(&sb, "Representante: %s\n", contact.Name)
	fmt.Fprintf(&sb, "Correo que rebota: %s\n", bounce.BouncedEmail)
	if bounce.BounceReason != "" {
		fmt.Fprintf(&sb, "Motivo del rebote: %s\n", bounce.BounceReason)
	}
	if bounce.InAkdemia && bounce.FamilyEmails != "" {
		if family := parseFamilyEmails(bounce.FamilyEmails); len(family) > 0 {
			fmt.Fprintf(&sb, "Otros correos registrados en Akdemia para la familia: %s\n", strings.Join(family, ", "))
		}
	}
	sb.WriteString(`
Tu objetivo es resolver la situación del correo. Las salidas posibles son:
1. El representante confirma que el correo está bien y el problema era temporal.
2. El representante da un correo nuevo.
3. El representante pide que eliminemos el correo sin sustituirlo.
4. El representante no quiere recibir correos.

Reglas:
- Escribe en español venezolano, tono cordial y profesional, mensajes cortos aptos para WhatsApp.
- Nunca inventes correos. Pide que lo escriban completo y confírmalo de vuelta letra por letra antes de cerrar.
- Cuando la situación quede resuelta, incluye en tu respuesta una línea aparte con el marcador correspondiente:
  RESOLVED:RESTORE si el correo actual es válido y debe mantenerse.
  RESOLVED:<correo nuevo> si dieron un correo nuevo ya confirmado.
  RESOLVED:REMOVE_ONLY si piden eliminar el correo sin sustituto.
  RESOLVED:DECLINED si no quieren recibir correos.
- Si dieron un correo nuevo y quieres que se envíe un correo de verificación, añade la línea ACTION:VERIFY_EMAIL:<correo>.
- Si la persona que responde no es el representante pero ofrece otro número de contacto, añade la línea ACTION:ALTERNATIVE_PHONE:<número>.
- Si la conversación se complica o piden hablar con una persona, añade la línea ACTION:ESCALATE:<motivo breve> y despídete con amabilidad.
- Las líneas de marcadores nunca deben mezclarse con el texto visible.
`)
	return sb.String(), nil
}

func (s *BounceResolution) Greeting(conv *models.Conversation, now time.Time) (string, error) {
	bounce, contact, err := s.load(conv)
	if err != nil {
		return "", err
	}
	agent := s.settings.Get(settings.KeyAgentDisplayName, "Glenda")
	institution := s.settings.Get(settings.KeyInstitutionDisplayName, "la institución")
	return fmt.Sprintf(
		"%s %s, le saluda %s de %s. Le escribo porque los correos que enviamos a la dirección %s están rebotando y no le están llegando. ¿Podría ayudarme a verificar si esa dirección sigue activa?",
		vetext.Greeting(now), vetext.FirstName(contact.Name), agent, institution, bounce.BouncedEmail,
	), nil
}

func (s *BounceResolution) ReminderMessage(conv *models.Conversation, final bool) string {
	agent := s.settings.Get(settings.KeyAgentDisplayName, "Glenda")
	if final {
		return fmt.Sprintf(
			"Hola, le escribe %s. Este es mi último intento de contacto sobre el correo electrónico que está rebotando. Si no recibo respuesta, cerraré la conversación. ¡Gracias!",
			agent,
		)
	}
	return fmt.Sprintf(
		"Hola, le escribe %s nuevamente. Quedo atenta a su respuesta sobre el correo electrónico que está rebotando, para poder mantener su información al día. ¡Gracias!",
		agent,
	)
}

func (s *BounceResolution) ProcessAIResponse(conv *models.Conversation, raw string) (*Action, error) {
	markers, visible := ParseMarkers(raw)
	action := &Action{
		Message:          visible,
		Escalate:         markers.Escalate,
		EscalationReason: markers.EscalationReason,
		AlternativePhone: markers.AlternativePhone,
	}
	if markers.VerifyEmail && markers.VerifyEmailAddr != "" {
		action.VerificationEmail = markers.VerifyEmailAddr
	}

	if markers.Resolved {
		token := markers.ResolutionToken
		action.Resolve = true
		action.ResolutionToken = token
		switch {
		case token == BounceRestore:
			action.Summary = "El representante confirmó que el correo actual es válido."
		case token == BounceRemoveOnly:
			action.Summary = "El representante pidió eliminar el correo sin sustituirlo."
		case token == BounceDeclined:
			action.Summary = "El representante no desea recibir correos."
		case strings.Contains(token, "@"):
			action.ResolutionData = map[string]string{"new_email": strings.ToLower(token)}
			action.Summary = fmt.Sprintf("Correo actualizado a %s.", strings.ToLower(token))
			if action.VerificationEmail == "" {
				action.VerificationEmail = strings.ToLower(token)
			}
		default:
			// The conversation goes on; the customer still gets the
			// visible text.
			log.Warn().Uint("conversationID", conv.ID).Str("token", token).
				Msg("Ignoring unrecognized resolution token")
			action.Resolve = false
			action.ResolutionToken = ""
		}
		if action.Resolve && action.Message == "" {
			action.Message = "¡Listo, muchas gracias por su tiempo! Que tenga buen día."
		}
	}

	return action, nil
}

// OnResolve updates the bounce log and the contact record in one
// transaction. RESTORE keeps the address, REMOVE_ONLY and DECLINED drop it,
// a new email replaces the bounced one in the contact's address list.
func (s *BounceResolution) OnResolve(conv *models.Conversation, action *Action) error {
	bounce, contact, err := s.load(conv)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	return s.db.Transaction(func(tx *gorm.DB) error {
		bounce.State = models.BounceStateResolved
		bounce.ResolvedDate = &now

		switch action.ResolutionToken {
		case BounceRestore:
			// Address stays as-is.
		case BounceRemoveOnly, BounceDeclined:
			contact.Email = removeEmail(contact.Email, bounce.BouncedEmail)
		default:
			newEmail := action.ResolutionData["new_email"]
			if newEmail == "" {
				return fmt.Errorf("bounce resolution %q without new_email", action.ResolutionToken)
			}
			bounce.NewEmail = newEmail
			contact.Email = replaceEmail(contact.Email, bounce.BouncedEmail, newEmail)
		}

		if err := tx.Save(bounce).Error; err != nil {
			return fmt.Errorf("save bounce log %d: %w", bounce.ID, err)
		}
		if err := tx.Save(contact).Error; err != nil {
			return fmt.Errorf("save contact %d: %w", contact.ID, err)
		}
		return nil
	})
}

// parseFamilyEmails decodes the JSON list of family addresses, tolerating
// both a bare array and an object with an "emails" key.
func parseFamilyEmails(raw string) []string {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list
	}
	var obj struct {
		Emails []string `json:"emails"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return obj.Emails
	}
	return nil
}

func splitEmails(list string) []string {
	parts := strings.Split(list, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func removeEmail(list, email string) string {
	var kept []string
	for _, e := range splitEmails(list) {
		if !strings.EqualFold(e, email) {
			kept = append(kept, e)
		}
	}
	return strings.Join(kept, ";")
}

func replaceEmail(list, old, updated string) string {
	emails := splitEmails(list)
	replaced := false
	for i, e := range emails {
		if strings.EqualFold(e, old) {
			emails[i] = updated
			replaced = true
		}
	}
	if !replaced {
		emails = append(emails, updated)
	}
	return strings.Join(emails, ";")
}
