// Package events publishes chat lifecycle events to Kafka for downstream
// consumers (notification fan-out, analytics). Publishing is best-effort: a
// broker failure is logged and never fails the originating request.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ConversationCreated is emitted after a conversation is created for a pair.
type ConversationCreated struct {
	ConversationID string   `json:"conversation_id"`
	Participants   []string `json:"participants"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageSent is emitted after a message is appended to a conversation log.
type MessageSent struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	SenderEmail    string    `json:"sender_email"`
	Kind           string    `json:"kind"`
	SentAt         time.Time `json:"sent_at"`
}

// Publisher writes events to a single topic keyed by conversation id. A nil
// Publisher is a no-op, so event publishing stays optional in config.
type Publisher struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewPublisher returns a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Publisher{writer: w, log: log}
}

// PublishConversationCreated emits a ConversationCreated event.
func (p *Publisher) PublishConversationCreated(ctx context.Context, ev ConversationCreated) {
	p.publish(ctx, "conversation.created", ev.ConversationID, ev)
}

// PublishMessageSent emits a MessageSent event.
func (p *Publisher) PublishMessageSent(ctx context.Context, ev MessageSent) {
	p.publish(ctx, "message.sent", ev.ConversationID, ev)
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *Publisher) publish(ctx context.Context, eventType, key string, ev any) {
	if p == nil || p.writer == nil {
		return
	}

	value, err := json.Marshal(ev)
	if err != nil {
		p.log.Errorw("marshal event", "type", eventType, "err", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Errorw("publish event", "type", eventType, "key", key, "err", err)
	}
}
