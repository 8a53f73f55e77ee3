// Package events publishes conversation lifecycle events to RabbitMQ so
// downstream dashboards and audit consumers can follow the engine without
// touching its database. Publishing is optional; with no broker URL the
// publisher is a no-op.
package events

import (
	"encoding/json"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Event types published by the engine.
const (
	ConversationStarted   = "conversation.started"
	ConversationResolved  = "conversation.resolved"
	ConversationFailed    = "conversation.failed"
	ConversationTimeout   = "conversation.timeout"
	ConversationEscalated = "conversation.escalated"
	ReminderSent          = "reminder.sent"
	CreditsChanged        = "credits.changed"
)

// Publisher writes JSON events to a durable queue.
type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	enabled bool
}

// NewPublisher connects to the broker. An empty url disables publishing
// without error; a failed connection is logged and also disables it.
func NewPublisher(url, queue string) *Publisher {
	if queue == "" {
		queue = "glenda_events"
	}
	p := &Publisher{queue: queue}
	if url == "" {
		log.Info().Msg("RabbitMQ URL is not set, event publishing disabled")
		return p
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		log.Error().Err(err).Msg("Could not connect to RabbitMQ, event publishing disabled")
		return p
	}
	channel, err := conn.Channel()
	if err != nil {
		log.Error().Err(err).Msg("Could not open RabbitMQ channel, event publishing disabled")
		conn.Close()
		return p
	}
	p.conn = conn
	p.channel = channel
	p.enabled = true
	log.Info().Str("queue", queue).Msg("RabbitMQ connection established")
	return p
}

// Publish sends one event. Failures are logged, never propagated; event
// delivery must not affect conversation processing.
func (p *Publisher) Publish(eventType string, conversationID uint, payload map[string]any) {
	if p == nil || !p.enabled {
		return
	}
	body := map[string]any{
		"event":           eventType,
		"conversation_id": conversationID,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range payload {
		body[k] = v
	}
	data, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Str("eventType", eventType).Msg("Failed to marshal event payload")
		return
	}

	_, err = p.channel.QueueDeclare(p.queue, true, false, false, false, nil)
	if err != nil {
		log.Error().Err(err).Str("queue", p.queue).Msg("Could not declare RabbitMQ queue")
		return
	}
	err = p.channel.Publish("", p.queue, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        data,
	})
	if err != nil {
		log.Error().Err(err).Str("eventType", eventType).Str("queue", p.queue).Msg("Could not publish event")
		return
	}
	log.Debug().Str("eventType", eventType).Uint("conversationID", conversationID).Msg("Event published")
}

// Close tears down the broker connection.
func (p *Publisher) Close() {
	if p == nil || !p.enabled {
		return
	}
	p.channel.Close()
	p.conn.Close()
}
