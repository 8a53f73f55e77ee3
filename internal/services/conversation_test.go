package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"glenda/internal/adapters/claude"
	"glenda/internal/models"
	"glenda/internal/settings"
)

func TestCreateNormalizesPhone(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createBounceConversation(t)

	assert.Equal(t, "+58 414 1234567", conv.Phone)
	assert.Equal(t, models.StateDraft, conv.State)
	assert.Contains(t, conv.Name, "María Pérez")
}

func TestCreateRefusesSecondOpenConversation(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createBounceConversation(t)

	_, err := env.service.Create(models.SkillBounceResolution, conv.ContactID, "04141234567", models.SourceBounceLog, conv.SourceID)
	assert.Error(t, err)
}

func TestCreateRejectsBadPhone(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.Create(models.SkillBounceResolution, 0, "12345", models.SourceBounceLog, 1)
	assert.Error(t, err)
}

func TestStartSendsGreetingAndFlagsBounce(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createBounceConversation(t)

	env.gateway.On("SendMessage", conv.Phone, mock.AnythingOfType("string")).Return(int64(100), nil)

	require.NoError(t, env.service.Start(conv))
	env.gateway.AssertExpectations(t)

	assert.Equal(t, models.StateWaiting, conv.State)
	assert.Equal(t, models.SenderAgent, conv.LastSender)

	var msg models.Message
	require.NoError(t, env.db.Where("conversation_id = ?", conv.ID).First(&msg).Error)
	assert.Equal(t, models.DirectionOutbound, msg.Direction)
	assert.Equal(t, int64(100), msg.GatewayMessageID)
	assert.Contains(t, msg.Body, "María")

	var bounce models.BounceLog
	require.NoError(t, env.db.First(&bounce, conv.SourceID).Error)
	assert.True(t, bounce.WhatsAppContacted)
	assert.Equal(t, models.BounceStateContacted, bounce.State)
	require.NotNil(t, bounce.ConversationID)
	assert.Equal(t, conv.ID, *bounce.ConversationID)

	// Starting twice is refused.
	assert.Error(t, env.service.Start(conv))
}

func startedBounceConversation(t *testing.T, env *testEnv) *models.Conversation {
	t.Helper()
	conv := env.createBounceConversation(t)
	env.gateway.On("SendMessage", conv.Phone, mock.AnythingOfType("string")).Return(int64(100), nil)
	require.NoError(t, env.service.Start(conv))
	return conv
}

func TestProcessReplyResolvesConversation(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)

	env.llm.On("Generate", mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.Anything).
		Return(&claude.Reply{
			Content:      "¡Gracias por confirmar!\nRESOLVED:RESTORE",
			InputTokens:  120,
			OutputTokens: 35,
		}, nil)

	err := env.service.ProcessReply(conv, InboundTurn{
		Text:             "Sí, ese correo está bien, era un problema temporal",
		GatewayMessageID: 555,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StateResolved, conv.State)
	assert.NotNil(t, conv.ResolvedDate)
	assert.NotEmpty(t, conv.ResolutionSummary)

	// Token usage lands on the outbound message.
	var outbound models.Message
	require.NoError(t, env.db.Where("conversation_id = ? AND direction = ? AND ai_input_tokens > 0",
		conv.ID, models.DirectionOutbound).First(&outbound).Error)
	assert.Equal(t, 120, outbound.AIInputTokens)
	assert.Equal(t, 35, outbound.AIOutputTokens)
	assert.Equal(t, "¡Gracias por confirmar!", outbound.Body)
}

func TestProcessReplyResolvesEvenWhenWritebackFails(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)

	// The bounce log vanishes mid-flight; the writeback will fail but the
	// conversation still closes.
	env.llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			require.NoError(t, env.db.Delete(&models.BounceLog{}, conv.SourceID).Error)
		}).
		Return(&claude.Reply{Content: "¡Gracias por confirmar!\nRESOLVED:RESTORE"}, nil)

	err := env.service.ProcessReply(conv, InboundTurn{Text: "el correo está bien", GatewayMessageID: 560})
	require.NoError(t, err)
	assert.Equal(t, models.StateResolved, conv.State)
	assert.NotNil(t, conv.ResolvedDate)

	var note models.Note
	require.NoError(t, env.db.Where("ref_model = ? AND ref_id = ? AND body LIKE ?",
		"conversation", conv.ID, "Fallo al aplicar la resolución%").First(&note).Error)
}

func TestProcessReplyKeepsWaitingWithoutResolution(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)

	env.llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&claude.Reply{Content: "¿Me confirma el correo completo, por favor?", InputTokens: 80, OutputTokens: 20}, nil)

	require.NoError(t, env.service.ProcessReply(conv, InboundTurn{Text: "hola", GatewayMessageID: 556}))
	assert.Equal(t, models.StateWaiting, conv.State)
	assert.Equal(t, models.SenderAgent, conv.LastSender)
}

func TestProcessReplyTurnBudget(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)

	require.NoError(t, env.db.Model(&models.Skill{}).
		Where("code = ?", models.SkillBounceResolution).
		Update("max_turns", 1).Error)

	err := env.service.ProcessReply(conv, InboundTurn{Text: "hola", GatewayMessageID: 557})
	require.NoError(t, err)

	assert.Equal(t, models.StateFailed, conv.State)
	env.llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessReplyRefusedOnTerminalState(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)
	conv.State = models.StateResolved
	require.NoError(t, env.db.Save(conv).Error)

	err := env.service.ProcessReply(conv, InboundTurn{Text: "hola", GatewayMessageID: 558})
	assert.Error(t, err)
}

func TestDryRunStubsModelAndGateway(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)

	require.NoError(t, env.settings.SetBool(settings.KeyDryRun, true))

	require.NoError(t, env.service.ProcessReply(conv, InboundTurn{Text: "hola", GatewayMessageID: 559}))
	env.llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	// Only the greeting went through the gateway, before dry-run was on.
	env.gateway.AssertNumberOfCalls(t, "SendMessage", 1)

	var outbound models.Message
	require.NoError(t, env.db.Where("conversation_id = ? AND direction = ? AND gateway_message_id = 0 AND body <> ''",
		conv.ID, models.DirectionOutbound).First(&outbound).Error)
	assert.Contains(t, outbound.Body, "[DRY_RUN]")
	assert.Equal(t, models.StateWaiting, conv.State)
}

func TestEscalationEmailOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)
	require.NoError(t, env.settings.Set(settings.KeyEscalationEmailTo, "admin@example.org"))

	env.llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&claude.Reply{Content: "Con gusto paso su caso.\nACTION:ESCALATE:pide hablar con una persona"}, nil)
	env.mail.On("Send", mock.Anything).Return(nil)

	require.NoError(t, env.service.ProcessReply(conv, InboundTurn{Text: "quiero hablar con alguien", GatewayMessageID: 600}))
	firstDate := conv.EscalationDate
	require.NotNil(t, firstDate)

	env.clock.now = env.clock.now.Add(2 * time.Hour)
	require.NoError(t, env.service.ProcessReply(conv, InboundTurn{Text: "sigo esperando", GatewayMessageID: 601}))

	env.mail.AssertNumberOfCalls(t, "Send", 1)
	assert.True(t, conv.EscalationNotified)
	// Both escalations are kept in the reason trail, but the date marks the
	// first one.
	assert.Equal(t, 2, len(splitLines(conv.EscalationReason)))
	require.NotNil(t, conv.EscalationDate)
	assert.Equal(t, *firstDate, *conv.EscalationDate)
}

func TestEscalationWithoutVisibleTextRecordsNoOutbound(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)

	env.llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&claude.Reply{Content: "ACTION:ESCALATE:mensaje incomprensible", InputTokens: 90, OutputTokens: 10}, nil)

	require.NoError(t, env.service.ProcessReply(conv, InboundTurn{Text: "xyzzy", GatewayMessageID: 602}))

	// Only the greeting went out.
	env.gateway.AssertNumberOfCalls(t, "SendMessage", 1)
	var empty int64
	require.NoError(t, env.db.Model(&models.Message{}).
		Where("conversation_id = ? AND direction = ? AND body = ''", conv.ID, models.DirectionOutbound).
		Count(&empty).Error)
	assert.Zero(t, empty)
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func TestCheckTimeoutsSendsReminderThenTimesOut(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)

	// 25 hours pass with no reply.
	env.clock.now = env.clock.now.Add(25 * time.Hour)
	env.service.CheckTimeouts()

	require.NoError(t, env.db.First(conv, conv.ID).Error)
	assert.Equal(t, 1, conv.ReminderCount)
	assert.Equal(t, models.StateWaiting, conv.State)
	env.gateway.AssertNumberOfCalls(t, "SendMessage", 2)

	// Within the interval nothing happens.
	env.clock.now = env.clock.now.Add(1 * time.Hour)
	env.service.CheckTimeouts()
	require.NoError(t, env.db.First(conv, conv.ID).Error)
	assert.Equal(t, 1, conv.ReminderCount)

	// Second reminder exhausts the budget and announces the last contact.
	env.clock.now = env.clock.now.Add(25 * time.Hour)
	env.service.CheckTimeouts()
	require.NoError(t, env.db.First(conv, conv.ID).Error)
	assert.Equal(t, 2, conv.ReminderCount)

	var last models.Message
	require.NoError(t, env.db.Where("conversation_id = ? AND direction = ?", conv.ID, models.DirectionOutbound).
		Order("id DESC").First(&last).Error)
	assert.Contains(t, last.Body, "último")

	env.clock.now = env.clock.now.Add(25 * time.Hour)
	env.service.CheckTimeouts()
	require.NoError(t, env.db.First(conv, conv.ID).Error)
	assert.Equal(t, models.StateTimeout, conv.State)
}

func TestRetryReopensTerminalConversation(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)
	conv.State = models.StateTimeout
	conv.ReminderCount = 2
	require.NoError(t, env.db.Save(conv).Error)

	require.NoError(t, env.service.Retry(conv))
	assert.Equal(t, models.StateWaiting, conv.State)
	assert.Equal(t, 0, conv.ReminderCount)

	// Waiting conversations cannot be retried.
	assert.Error(t, env.service.Retry(conv))
}

func TestForceResolve(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)

	require.NoError(t, env.service.ForceResolve(conv, "atendido por teléfono"))
	assert.Equal(t, models.StateResolved, conv.State)
	assert.Contains(t, conv.ResolutionSummary, "atendido por teléfono")

	assert.Error(t, env.service.ForceResolve(conv, "otra vez"))
}

func TestResolveViaEmail(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)

	err := env.service.ResolveViaEmail(conv.SourceID, "Nuevo@Example.com")
	require.NoError(t, err)

	require.NoError(t, env.db.First(conv, conv.ID).Error)
	assert.Equal(t, models.StateResolved, conv.State)

	var contact models.Contact
	require.NoError(t, env.db.First(&contact, conv.ContactID).Error)
	assert.Equal(t, "nuevo@example.com", contact.Email)

	var bounce models.BounceLog
	require.NoError(t, env.db.First(&bounce, conv.SourceID).Error)
	assert.Equal(t, models.BounceStateResolved, bounce.State)
}

func TestAlternativePhoneNeverRebinds(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)

	env.llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&claude.Reply{Content: "Gracias, tomo nota del otro número.\nACTION:ALTERNATIVE_PHONE:04241112233"}, nil)

	require.NoError(t, env.service.ProcessReply(conv, InboundTurn{Text: "yo no soy maría, llame al 0424", GatewayMessageID: 700}))
	assert.Equal(t, "+58 424 1112233", conv.AlternativePhone)
	assert.Equal(t, "+58 414 1234567", conv.Phone)
}
