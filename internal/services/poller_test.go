package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"glenda/internal/adapters/claude"
	"glenda/internal/adapters/whatsapp"
	"glenda/internal/models"
)

func TestPollerBatchesBurstIntoOneTurn(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)
	poller := NewPoller(env.db, env.gateway, env.service)

	env.gateway.On("FetchReceived", pollBatchSize).Return([]whatsapp.ReceivedMessage{
		{ID: 3, Phone: "584141234567", Message: "es viejo@example.com", Timestamp: 1030},
		{ID: 2, Phone: "04141234567", Message: "mi correo sigue igual", Timestamp: 1020},
		{ID: 1, Phone: "+58 414 1234567", Message: "hola", Timestamp: 1010},
	}, nil)
	env.llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&claude.Reply{Content: "¡Gracias!\nRESOLVED:RESTORE", InputTokens: 50, OutputTokens: 10}, nil)

	poller.Poll()

	// One model call for the whole burst.
	env.llm.AssertNumberOfCalls(t, "Generate", 1)

	var inbound []models.Message
	require.NoError(t, env.db.Where("conversation_id = ? AND direction = ?", conv.ID, models.DirectionInbound).
		Order("gateway_message_id").Find(&inbound).Error)
	require.Len(t, inbound, 3)

	// Oldest message anchors the combined text; the rest are placeholders.
	assert.Equal(t, int64(1), inbound[0].GatewayMessageID)
	assert.Equal(t, "hola\nmi correo sigue igual\nes viejo@example.com", inbound[0].Body)
	assert.Empty(t, inbound[1].Body)
	assert.Empty(t, inbound[2].Body)
}

func TestPollerDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)
	poller := NewPoller(env.db, env.gateway, env.service)

	// Already persisted in a previous cycle.
	require.NoError(t, env.db.Create(&models.Message{
		ConversationID:   conv.ID,
		Direction:        models.DirectionInbound,
		Body:             "hola",
		GatewayMessageID: 10,
		Timestamp:        env.clock.now,
	}).Error)

	env.gateway.On("FetchReceived", pollBatchSize).Return([]whatsapp.ReceivedMessage{
		{ID: 10, Phone: "04141234567", Message: "hola", Timestamp: 1000},
	}, nil)

	poller.Poll()
	env.llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestPollerDropsMessagesWithoutOpenConversation(t *testing.T) {
	env := newTestEnv(t)
	poller := NewPoller(env.db, env.gateway, env.service)

	env.gateway.On("FetchReceived", pollBatchSize).Return([]whatsapp.ReceivedMessage{
		{ID: 20, Phone: "04167778899", Message: "hola, ¿quién es?", Timestamp: 1000},
		{ID: 21, Phone: "garbage", Message: "???", Timestamp: 1001},
	}, nil)

	poller.Poll()

	var count int64
	require.NoError(t, env.db.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPollerAttachmentRidesAlong(t *testing.T) {
	env := newTestEnv(t)
	conv := startedBounceConversation(t, env)
	poller := NewPoller(env.db, env.gateway, env.service)

	env.gateway.On("FetchReceived", pollBatchSize).Return([]whatsapp.ReceivedMessage{
		{ID: 31, Phone: "04141234567", Message: "aquí la foto", Timestamp: 1000},
		{ID: 32, Phone: "04141234567", Attachment: "https://gateway.example/media/32.jpg", Type: "image", Timestamp: 1001},
	}, nil)
	env.llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&claude.Reply{Content: "Recibido."}, nil)

	poller.Poll()

	var withAttachment models.Message
	require.NoError(t, env.db.Where("conversation_id = ? AND attachment_url <> ''", conv.ID).
		First(&withAttachment).Error)
	assert.Equal(t, int64(32), withAttachment.GatewayMessageID)
	assert.Equal(t, models.AttachmentImage, withAttachment.AttachmentType)
}
