package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"glenda/internal/adapters/claude"
	"glenda/internal/adapters/mailer"
	"glenda/internal/events"
	"glenda/internal/models"
	"glenda/internal/settings"
	"glenda/internal/skills"
	"glenda/internal/vetext"
)

// dryRunReply is what the model "answers" when dry-run mode is on.
const dryRunReply = "[DRY_RUN] Respuesta simulada del AI"

const defaultModel = "claude-haiku-4-5-20251001"

// InboundAttachment is one extra media message batched into a logical turn.
type InboundAttachment struct {
	GatewayMessageID int64
	URL              string
	Type             string
	Timestamp        time.Time
}

// InboundTurn is one logical customer turn: the anchor message plus any
// extra messages that arrived in the same burst.
type InboundTurn struct {
	Text             string
	GatewayMessageID int64
	Timestamp        time.Time
	AttachmentURL    string
	AttachmentType   string

	// ExtraIDs are gateway ids of additional text messages whose bodies were
	// merged into Text. Persisted as empty placeholders so dedup holds.
	ExtraIDs []int64
	// ExtraAttachments are additional media messages of the burst. Each
	// becomes its own Message row but joins this turn for the model.
	ExtraAttachments []InboundAttachment
}

// ConversationService owns the conversation lifecycle: creation, start,
// reply processing, reminders, timeouts and manual interventions.
type ConversationService struct {
	db       *gorm.DB
	settings *settings.Store
	registry *skills.Registry
	gateway  WhatsAppGateway
	llm      LLMGateway
	mail     Mailer
	events   *events.Publisher
	history  *HistoryBuilder
	clock    Clock
}

func NewConversationService(
	db *gorm.DB,
	st *settings.Store,
	registry *skills.Registry,
	gateway WhatsAppGateway,
	llm LLMGateway,
	mail Mailer,
	publisher *events.Publisher,
	history *HistoryBuilder,
	clock Clock,
) (*ConversationService, error) {
	if db == nil || st == nil || registry == nil || gateway == nil || llm == nil || history == nil || clock == nil {
		return nil, fmt.Errorf("conversation service: missing dependency")
	}
	return &ConversationService{
		db:       db,
		settings: st,
		registry: registry,
		gateway:  gateway,
		llm:      llm,
		mail:     mail,
		events:   publisher,
		history:  history,
		clock:    clock,
	}, nil
}

func (s *ConversationService) skillRow(code string) (*models.Skill, error) {
	var row models.Skill
	if err := s.db.Where("code = ?", code).First(&row).Error; err != nil {
		return nil, fmt.Errorf("load skill %q: %w", code, err)
	}
	return &row, nil
}

// Load fetches a conversation by id.
func (s *ConversationService) Load(id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.First(&conv, id).Error; err != nil {
		return nil, fmt.Errorf("load conversation %d: %w", id, err)
	}
	return &conv, nil
}

// Create opens a draft conversation for a business record. Refuses when the
// record already has an open conversation; one task, one thread.
func (s *ConversationService) Create(skillCode string, contactID uint, rawPhone, sourceModel string, sourceID uint) (*models.Conversation, error) {
	row, err := s.skillRow(skillCode)
	if err != nil {
		return nil, err
	}
	if !row.Active {
		return nil, fmt.Errorf("skill %q is disabled", skillCode)
	}
	if _, err := s.registry.Get(skillCode); err != nil {
		return nil, err
	}
	phone, err := vetext.NormalizePhone(rawPhone)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	var open int64
	err = s.db.Model(&models.Conversation{}).
		Where("source_model = ? AND source_id = ? AND state IN ?",
			sourceModel, sourceID, []string{models.StateDraft, models.StateWaiting, models.StateActive}).
		Count(&open).Error
	if err != nil {
		return nil, fmt.Errorf("check open conversations: %w", err)
	}
	if open > 0 {
		return nil, fmt.Errorf("record %s/%d already has an open conversation", sourceModel, sourceID)
	}

	name := row.Name
	if contactID != 0 {
		var contact models.Contact
		if err := s.db.First(&contact, contactID).Error; err == nil {
			name = fmt.Sprintf("%s - %s", row.Name, contact.Name)
		}
	}

	conv := &models.Conversation{
		Name:        name,
		SkillCode:   skillCode,
		ContactID:   contactID,
		Phone:       phone,
		State:       models.StateDraft,
		SourceModel: sourceModel,
		SourceID:    sourceID,
	}
	if err := s.db.Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	log.Info().Uint("conversationID", conv.ID).Str("skill", skillCode).Str("phone", phone).Msg("Conversation created")
	return conv, nil
}

// Start sends the greeting and moves the conversation to waiting.
func (s *ConversationService) Start(conv *models.Conversation) error {
	if conv.State != models.StateDraft {
		return fmt.Errorf("conversation %d is %s, only draft conversations start", conv.ID, conv.State)
	}
	skill, err := s.registry.Get(conv.SkillCode)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	greeting, err := skill.Greeting(conv, now)
	if err != nil {
		return fmt.Errorf("build greeting for conversation %d: %w", conv.ID, err)
	}

	gatewayID, err := s.sendText(conv.Phone, greeting)
	if err != nil {
		return err
	}
	if err := s.recordOutbound(conv, greeting, gatewayID, 0, 0); err != nil {
		return err
	}

	conv.State = models.StateWaiting
	conv.LastMessageDate = &now
	conv.LastSender = models.SenderAgent
	if err := s.db.Save(conv).Error; err != nil {
		return fmt.Errorf("save conversation %d: %w", conv.ID, err)
	}

	if conv.SourceModel == models.SourceBounceLog {
		s.markBounceContacted(conv, now)
	}

	s.events.Publish(events.ConversationStarted, conv.ID, map[string]any{"skill": conv.SkillCode})
	log.Info().Uint("conversationID", conv.ID).Msg("Conversation started")
	return nil
}

func (s *ConversationService) markBounceContacted(conv *models.Conversation, now time.Time) {
	updates := map[string]any{
		"whats_app_contacted":    true,
		"whats_app_contact_date": now,
		"conversation_id":        conv.ID,
		"state":                  models.BounceStateContacted,
	}
	if err := s.db.Model(&models.BounceLog{}).Where("id = ?", conv.SourceID).Updates(updates).Error; err != nil {
		log.Error().Err(err).Uint("bounceID", conv.SourceID).Msg("Could not flag bounce log as contacted")
	}
}

// ProcessReply handles one logical inbound turn: persist it, check the turn
// budget, run the model and execute the resulting action.
func (s *ConversationService) ProcessReply(conv *models.Conversation, turn InboundTurn) error {
	if !conv.IsOpen() {
		return fmt.Errorf("conversation %d is %s, not open", conv.ID, conv.State)
	}
	skill, err := s.registry.Get(conv.SkillCode)
	if err != nil {
		return err
	}
	row, err := s.skillRow(conv.SkillCode)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if turn.Timestamp.IsZero() {
		turn.Timestamp = now
	}
	if err := s.persistTurn(conv, turn); err != nil {
		return err
	}

	conv.State = models.StateActive
	conv.LastMessageDate = &turn.Timestamp
	conv.LastSender = models.SenderCustomer
	if err := s.db.Save(conv).Error; err != nil {
		return fmt.Errorf("save conversation %d: %w", conv.ID, err)
	}

	// Turn budget: counted inbound turns carry text.
	var turns int64
	err = s.db.Model(&models.Message{}).
		Where("conversation_id = ? AND direction = ? AND body <> ''", conv.ID, models.DirectionInbound).
		Count(&turns).Error
	if err != nil {
		return fmt.Errorf("count turns for conversation %d: %w", conv.ID, err)
	}
	if int(turns) >= row.MaxTurns {
		conv.State = models.StateFailed
		if err := s.db.Save(conv).Error; err != nil {
			return fmt.Errorf("save conversation %d: %w", conv.ID, err)
		}
		s.postNote(conv, fmt.Sprintf("Conversación fallida: se alcanzó el máximo de %d turnos.", row.MaxTurns))
		s.events.Publish(events.ConversationFailed, conv.ID, map[string]any{"reason": "max_turns"})
		log.Warn().Uint("conversationID", conv.ID).Int("maxTurns", row.MaxTurns).Msg("Conversation failed on turn budget")
		return nil
	}

	reply, err := s.generate(conv, skill, row)
	if err != nil {
		return err
	}

	action, err := skill.ProcessAIResponse(conv, reply.Content)
	if err != nil {
		return fmt.Errorf("interpret reply for conversation %d: %w", conv.ID, err)
	}

	return s.execute(conv, skill, action, reply)
}

func (s *ConversationService) persistTurn(conv *models.Conversation, turn InboundTurn) error {
	anchor := models.Message{
		ConversationID:   conv.ID,
		Direction:        models.DirectionInbound,
		Body:             turn.Text,
		Timestamp:        turn.Timestamp,
		GatewayMessageID: turn.GatewayMessageID,
		AttachmentURL:    turn.AttachmentURL,
		AttachmentType:   turn.AttachmentType,
	}
	if err := s.db.Create(&anchor).Error; err != nil {
		return fmt.Errorf("persist inbound message: %w", err)
	}
	for _, id := range turn.ExtraIDs {
		placeholder := models.Message{
			ConversationID:   conv.ID,
			Direction:        models.DirectionInbound,
			Timestamp:        turn.Timestamp,
			GatewayMessageID: id,
		}
		if err := s.db.Create(&placeholder).Error; err != nil {
			return fmt.Errorf("persist dedup placeholder: %w", err)
		}
	}
	for _, att := range turn.ExtraAttachments {
		ts := att.Timestamp
		if ts.IsZero() {
			ts = turn.Timestamp
		}
		extra := models.Message{
			ConversationID:   conv.ID,
			Direction:        models.DirectionInbound,
			Timestamp:        ts,
			GatewayMessageID: att.GatewayMessageID,
			AttachmentURL:    att.URL,
			AttachmentType:   att.Type,
		}
		if err := s.db.Create(&extra).Error; err != nil {
			return fmt.Errorf("persist inbound attachment: %w", err)
		}
	}
	return nil
}

func (s *ConversationService) generate(conv *models.Conversation, skill skills.Skill, row *models.Skill) (*claude.Reply, error) {
	if s.settings.DryRun() {
		log.Info().Uint("conversationID", conv.ID).Msg("Dry-run: skipping model call")
		return &claude.Reply{Content: dryRunReply}, nil
	}
	system, err := skill.SystemPrompt(conv)
	if err != nil {
		return nil, fmt.Errorf("build system prompt for conversation %d: %w", conv.ID, err)
	}
	history, err := s.history.Build(conv)
	if err != nil {
		return nil, err
	}
	model := row.ModelName
	if model == "" {
		model = defaultModel
	}
	reply, err := s.llm.Generate(model, system, history)
	if err != nil {
		return nil, fmt.Errorf("generate reply for conversation %d: %w", conv.ID, err)
	}
	return reply, nil
}

// execute applies one interpreted action. Escalation, resolution, phone
// capture and verification mail may all combine in a single turn.
func (s *ConversationService) execute(conv *models.Conversation, skill skills.Skill, action *skills.Action, reply *claude.Reply) error {
	now := s.clock.Now()

	if action.AlternativePhone != "" {
		if phone, err := vetext.NormalizePhone(action.AlternativePhone); err == nil {
			conv.AlternativePhone = phone
			s.postNote(conv, fmt.Sprintf("Número alternativo reportado: %s", phone))
		} else {
			log.Warn().Err(err).Uint("conversationID", conv.ID).Msg("Ignoring unparseable alternative phone")
		}
	}

	if action.Escalate {
		s.escalate(conv, action.EscalationReason, now)
	}

	if action.Message != "" {
		gatewayID, err := s.sendText(conv.Phone, action.Message)
		if err != nil {
			return err
		}
		if err := s.recordOutbound(conv, action.Message, gatewayID, reply.InputTokens, reply.OutputTokens); err != nil {
			return err
		}
	} else if reply.InputTokens > 0 || reply.OutputTokens > 0 {
		log.Warn().Uint("conversationID", conv.ID).
			Int("inputTokens", reply.InputTokens).Int("outputTokens", reply.OutputTokens).
			Msg("Reply without visible text, token counts not recorded")
	}

	if action.VerificationEmail != "" {
		s.sendVerificationEmail(conv, action.VerificationEmail, now)
	}

	if action.Resolve {
		return s.resolve(conv, skill, action, now)
	}

	conv.State = models.StateWaiting
	conv.LastMessageDate = &now
	conv.LastSender = models.SenderAgent
	if err := s.db.Save(conv).Error; err != nil {
		return fmt.Errorf("save conversation %d: %w", conv.ID, err)
	}
	return nil
}

// resolve closes the conversation first and only then runs the skill's
// business writeback. A failed writeback never reopens the conversation;
// it is logged and left as a note for manual follow-up.
func (s *ConversationService) resolve(conv *models.Conversation, skill skills.Skill, action *skills.Action, now time.Time) error {
	conv.State = models.StateResolved
	conv.ResolvedDate = &now
	conv.ResolutionSummary = action.Summary
	conv.LastMessageDate = &now
	conv.LastSender = models.SenderAgent
	if err := s.db.Save(conv).Error; err != nil {
		return fmt.Errorf("save conversation %d: %w", conv.ID, err)
	}
	if err := skill.OnResolve(conv, action); err != nil {
		log.Error().Err(err).Uint("conversationID", conv.ID).Msg("Resolution writeback failed")
		s.postNote(conv, fmt.Sprintf("Fallo al aplicar la resolución: %v", err))
	}
	s.postNote(conv, fmt.Sprintf("Conversación resuelta: %s", action.Summary))
	s.events.Publish(events.ConversationResolved, conv.ID, map[string]any{
		"token":   action.ResolutionToken,
		"summary": action.Summary,
	})
	log.Info().Uint("conversationID", conv.ID).Str("token", action.ResolutionToken).Msg("Conversation resolved")
	return nil
}

// escalate records the reason and alerts a human once per conversation.
func (s *ConversationService) escalate(conv *models.Conversation, reason string, now time.Time) {
	stamped := fmt.Sprintf("[%s] %s", now.Format("2006-01-02 15:04"), reason)
	if conv.EscalationReason != "" {
		conv.EscalationReason += "\n" + stamped
	} else {
		conv.EscalationReason = stamped
	}
	if conv.EscalationDate == nil {
		conv.EscalationDate = &now
	}

	if !conv.EscalationNotified {
		to := s.settings.Get(settings.KeyEscalationEmailTo, "")
		if to != "" && s.mail != nil {
			err := s.sendMail(mailer.Email{
				From:    s.settings.Get(settings.KeyEscalationEmailFrom, ""),
				To:      strings.Split(to, ","),
				Subject: fmt.Sprintf("Escalación de conversación #%d: %s", conv.ID, conv.Name),
				BodyHTML: fmt.Sprintf("<p>La conversación <b>%s</b> (tel. %s) requiere atención humana.</p><p>Motivo: %s</p>",
					conv.Name, conv.Phone, reason),
			})
			if err != nil {
				log.Error().Err(err).Uint("conversationID", conv.ID).Msg("Escalation email failed")
			} else {
				conv.EscalationNotified = true
			}
		} else {
			conv.EscalationNotified = true
		}
	}

	s.postNote(conv, fmt.Sprintf("Escalación: %s", reason))
	s.events.Publish(events.ConversationEscalated, conv.ID, map[string]any{"reason": reason})
}

func (s *ConversationService) sendVerificationEmail(conv *models.Conversation, addr string, now time.Time) {
	err := s.sendMail(mailer.Email{
		From:    s.settings.Get(settings.KeyVerificationEmailFrom, ""),
		To:      []string{addr},
		Subject: "Verificación de correo electrónico",
		BodyHTML: fmt.Sprintf("<p>Hola, este es un correo de verificación de %s. Si lo recibió, por favor respóndalo para confirmar que la dirección funciona correctamente.</p>",
			s.settings.Get(settings.KeyInstitutionDisplayName, "la institución")),
	})
	if err != nil {
		log.Error().Err(err).Str("to", addr).Uint("conversationID", conv.ID).Msg("Verification email failed")
		return
	}
	conv.VerificationEmailSentDate = &now
	conv.VerificationEmailRecipient = addr
	s.postNote(conv, fmt.Sprintf("Correo de verificación enviado a %s", addr))
}

// SendReminder nudges a silent customer and advances the reminder counter.
// The last reminder of the budget announces it is the final contact attempt.
func (s *ConversationService) SendReminder(conv *models.Conversation) error {
	skill, err := s.registry.Get(conv.SkillCode)
	if err != nil {
		return err
	}
	row, err := s.skillRow(conv.SkillCode)
	if err != nil {
		return err
	}
	final := conv.ReminderCount+1 >= row.MaxReminders
	text := skill.ReminderMessage(conv, final)
	gatewayID, err := s.sendText(conv.Phone, text)
	if err != nil {
		return err
	}
	if err := s.recordOutbound(conv, text, gatewayID, 0, 0); err != nil {
		return err
	}
	now := s.clock.Now()
	conv.ReminderCount++
	conv.LastReminderDate = &now
	if err := s.db.Save(conv).Error; err != nil {
		return fmt.Errorf("save conversation %d: %w", conv.ID, err)
	}
	s.events.Publish(events.ReminderSent, conv.ID, map[string]any{"count": conv.ReminderCount})
	log.Info().Uint("conversationID", conv.ID).Int("reminderCount", conv.ReminderCount).Msg("Reminder sent")
	return nil
}

// CheckTimeouts walks waiting conversations and applies the reminder policy:
// past the interval a reminder goes out while the budget lasts, then the
// conversation times out.
func (s *ConversationService) CheckTimeouts() {
	var waiting []models.Conversation
	err := s.db.Where("state = ? AND last_sender = ?", models.StateWaiting, models.SenderAgent).
		Find(&waiting).Error
	if err != nil {
		log.Error().Err(err).Msg("Could not query waiting conversations")
		return
	}
	now := s.clock.Now()
	for i := range waiting {
		conv := &waiting[i]
		row, err := s.skillRow(conv.SkillCode)
		if err != nil {
			log.Error().Err(err).Uint("conversationID", conv.ID).Msg("Skipping conversation with unknown skill")
			continue
		}
		ref := conv.LastMessageDate
		if conv.LastReminderDate != nil && (ref == nil || conv.LastReminderDate.After(*ref)) {
			ref = conv.LastReminderDate
		}
		if ref == nil {
			continue
		}
		if now.Sub(*ref) <= time.Duration(row.ReminderIntervalHours)*time.Hour {
			continue
		}
		if conv.ReminderCount < row.MaxReminders {
			if err := s.SendReminder(conv); err != nil {
				log.Error().Err(err).Uint("conversationID", conv.ID).Msg("Reminder failed")
			}
			continue
		}
		if err := s.Timeout(conv); err != nil {
			log.Error().Err(err).Uint("conversationID", conv.ID).Msg("Timeout transition failed")
		}
	}
}

// Timeout closes a conversation the customer never answered.
func (s *ConversationService) Timeout(conv *models.Conversation) error {
	if conv.State != models.StateWaiting {
		return fmt.Errorf("conversation %d is %s, only waiting conversations time out", conv.ID, conv.State)
	}
	conv.State = models.StateTimeout
	if err := s.db.Save(conv).Error; err != nil {
		return fmt.Errorf("save conversation %d: %w", conv.ID, err)
	}
	s.postNote(conv, "Conversación cerrada por falta de respuesta.")
	s.events.Publish(events.ConversationTimeout, conv.ID, nil)
	log.Info().Uint("conversationID", conv.ID).Msg("Conversation timed out")
	return nil
}

// Retry reopens a failed or timed-out conversation and resets its reminder
// budget.
func (s *ConversationService) Retry(conv *models.Conversation) error {
	if conv.State != models.StateFailed && conv.State != models.StateTimeout {
		return fmt.Errorf("conversation %d is %s, only failed or timed-out conversations retry", conv.ID, conv.State)
	}
	conv.State = models.StateWaiting
	conv.ReminderCount = 0
	conv.LastReminderDate = nil
	if err := s.db.Save(conv).Error; err != nil {
		return fmt.Errorf("save conversation %d: %w", conv.ID, err)
	}
	s.postNote(conv, "Conversación reabierta manualmente.")
	log.Info().Uint("conversationID", conv.ID).Msg("Conversation reopened")
	return nil
}

// ForceResolve closes an open conversation by hand, skipping the skill's
// business writeback.
func (s *ConversationService) ForceResolve(conv *models.Conversation, summary string) error {
	if conv.IsTerminal() {
		return fmt.Errorf("conversation %d is already %s", conv.ID, conv.State)
	}
	now := s.clock.Now()
	conv.State = models.StateResolved
	conv.ResolvedDate = &now
	conv.ResolutionSummary = fmt.Sprintf("Resuelto manualmente: %s", summary)
	if err := s.db.Save(conv).Error; err != nil {
		return fmt.Errorf("save conversation %d: %w", conv.ID, err)
	}
	s.postNote(conv, conv.ResolutionSummary)
	s.events.Publish(events.ConversationResolved, conv.ID, map[string]any{"manual": true})
	return nil
}

// ResolveViaEmail closes a bounce conversation when the fix arrives by
// email instead of WhatsApp, applying the same writeback as a RESOLVED
// marker with the new address.
func (s *ConversationService) ResolveViaEmail(bounceLogID uint, newEmail string) error {
	var conv models.Conversation
	err := s.db.Where("source_model = ? AND source_id = ? AND state IN ?",
		models.SourceBounceLog, bounceLogID, []string{models.StateWaiting, models.StateActive}).
		First(&conv).Error
	if err != nil {
		return fmt.Errorf("no open conversation for bounce log %d: %w", bounceLogID, err)
	}
	skill, err := s.registry.Get(models.SkillBounceResolution)
	if err != nil {
		return err
	}
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	action := &skills.Action{
		Resolve:         true,
		ResolutionToken: newEmail,
		ResolutionData:  map[string]string{"new_email": newEmail},
		Summary:         fmt.Sprintf("Correo actualizado a %s (confirmado por email).", newEmail),
	}
	now := s.clock.Now()
	if err := s.resolve(&conv, skill, action, now); err != nil {
		return err
	}
	closing := "Le confirmamos que su correo electrónico quedó actualizado. ¡Gracias!"
	if id, err := s.sendText(conv.Phone, closing); err == nil {
		if err := s.recordOutbound(&conv, closing, id, 0, 0); err != nil {
			log.Error().Err(err).Uint("conversationID", conv.ID).Msg("Could not record closing message")
		}
	} else {
		log.Error().Err(err).Uint("conversationID", conv.ID).Msg("Closing message failed")
	}
	return nil
}

// sendText delivers a WhatsApp message unless dry-run is on. A configured
// send interval throttles consecutive deliveries.
func (s *ConversationService) sendText(phone, text string) (int64, error) {
	if s.settings.DryRun() {
		log.Info().Str("phone", phone).Str("text", text).Msg("Dry-run: WhatsApp send skipped")
		return 0, nil
	}
	id, err := s.gateway.SendMessage(phone, text)
	if err != nil {
		return 0, fmt.Errorf("send whatsapp message: %w", err)
	}
	if interval := s.settings.GetInt(settings.KeyWhatsAppSendInterval, 0); interval > 0 {
		time.Sleep(time.Duration(interval) * time.Second)
	}
	return id, nil
}

func (s *ConversationService) sendMail(e mailer.Email) error {
	if s.settings.DryRun() {
		log.Info().Strs("to", e.To).Str("subject", e.Subject).Msg("Dry-run: email skipped")
		return nil
	}
	if s.mail == nil {
		return fmt.Errorf("mailer not configured")
	}
	return s.mail.Send(e)
}

func (s *ConversationService) recordOutbound(conv *models.Conversation, body string, gatewayID int64, inputTokens, outputTokens int) error {
	msg := models.Message{
		ConversationID:   conv.ID,
		Direction:        models.DirectionOutbound,
		Body:             body,
		Timestamp:        s.clock.Now(),
		GatewayMessageID: gatewayID,
		AIInputTokens:    inputTokens,
		AIOutputTokens:   outputTokens,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return fmt.Errorf("persist outbound message: %w", err)
	}
	return nil
}

func (s *ConversationService) postNote(conv *models.Conversation, body string) {
	note := models.Note{RefModel: "conversation", RefID: conv.ID, Body: body}
	if err := s.db.Create(&note).Error; err != nil {
		log.Error().Err(err).Uint("conversationID", conv.ID).Msg("Could not post note")
	}
}
