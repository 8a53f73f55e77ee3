package services

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"glenda/internal/adapters/whatsapp"
	"glenda/internal/models"
	"glenda/internal/vetext"
)

const pollBatchSize = 50

// Poller pulls recent inbound messages from the gateway, routes each burst
// to its open conversation and hands it over as one logical turn. Messages
// with no open conversation are dropped; the engine never starts threads
// from inbound traffic.
type Poller struct {
	db            *gorm.DB
	gateway       WhatsAppGateway
	conversations *ConversationService
}

func NewPoller(db *gorm.DB, gateway WhatsAppGateway, conversations *ConversationService) *Poller {
	return &Poller{db: db, gateway: gateway, conversations: conversations}
}

// Poll runs one fetch-group-dispatch cycle.
func (p *Poller) Poll() {
	received, err := p.gateway.FetchReceived(pollBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Could not fetch received messages")
		return
	}
	if len(received) == 0 {
		return
	}

	byPhone := make(map[string][]whatsapp.ReceivedMessage)
	var order []string
	for _, msg := range received {
		phone, err := vetext.NormalizePhone(msg.Phone)
		if err != nil {
			log.Debug().Str("phone", msg.Phone).Msg("Dropping message from unrecognized number")
			continue
		}
		if _, seen := byPhone[phone]; !seen {
			order = append(order, phone)
		}
		byPhone[phone] = append(byPhone[phone], msg)
	}

	for _, phone := range order {
		p.dispatch(phone, byPhone[phone])
	}
}

func (p *Poller) dispatch(phone string, burst []whatsapp.ReceivedMessage) {
	var conv models.Conversation
	err := p.db.Where("phone = ? AND state IN ?", phone,
		[]string{models.StateWaiting, models.StateActive}).
		Order("id DESC").
		First(&conv).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error().Err(err).Str("phone", phone).Msg("Conversation lookup failed")
		}
		// No open thread for this number; the message is not for us.
		log.Debug().Str("phone", phone).Int("messages", len(burst)).Msg("Dropping messages without open conversation")
		return
	}

	fresh := p.dedup(conv.ID, burst)
	if len(fresh) == 0 {
		return
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Timestamp < fresh[j].Timestamp })

	turn := buildTurn(fresh)
	if err := p.conversations.ProcessReply(&conv, turn); err != nil {
		log.Error().Err(err).Uint("conversationID", conv.ID).Msg("Reply processing failed")
	}
}

// dedup drops messages already persisted for this conversation.
func (p *Poller) dedup(conversationID uint, burst []whatsapp.ReceivedMessage) []whatsapp.ReceivedMessage {
	var fresh []whatsapp.ReceivedMessage
	for _, msg := range burst {
		var count int64
		err := p.db.Model(&models.Message{}).
			Where("conversation_id = ? AND gateway_message_id = ?", conversationID, msg.ID).
			Count(&count).Error
		if err != nil {
			log.Error().Err(err).Int64("gatewayMessageID", msg.ID).Msg("Dedup lookup failed, skipping message")
			continue
		}
		if count == 0 {
			fresh = append(fresh, msg)
		}
	}
	return fresh
}

// buildTurn folds a burst into one logical turn: text bodies concatenate
// onto the anchor, extra attachments ride along as separate rows.
func buildTurn(burst []whatsapp.ReceivedMessage) InboundTurn {
	anchor := burst[0]
	turn := InboundTurn{
		Text:             anchor.Message,
		GatewayMessageID: anchor.ID,
		Timestamp:        time.Unix(anchor.Timestamp, 0).UTC(),
		AttachmentURL:    anchor.Attachment,
		AttachmentType:   anchor.Type,
	}
	for _, msg := range burst[1:] {
		if msg.Attachment != "" {
			turn.ExtraAttachments = append(turn.ExtraAttachments, InboundAttachment{
				GatewayMessageID: msg.ID,
				URL:              msg.Attachment,
				Type:             msg.Type,
				Timestamp:        time.Unix(msg.Timestamp, 0).UTC(),
			})
			continue
		}
		if msg.Message != "" {
			if turn.Text != "" {
				turn.Text += "\n" + msg.Message
			} else {
				turn.Text = msg.Message
			}
		}
		turn.ExtraIDs = append(turn.ExtraIDs, msg.ID)
	}
	return turn
}
