package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/telemetry"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunPending   MessageType = "run.pending"
	MessageTypeRunCompleted MessageType = "run.completed"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка (raw JSON).
	Payload json.RawMessage `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID и сериализованным payload.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now(),
	}, nil
}

// RunPendingPayload — payload для сообщения о run, ожидающем выполнения.
type RunPendingPayload struct {
	RunID   uuid.UUID         `json:"run_id"`
	Input   json.RawMessage   `json:"input"`
	Options domain.RunOptions `json:"options"`
}

// RunCompletedPayload — payload для сообщения о завершённом run.
type RunCompletedPayload struct {
	RunID  uuid.UUID        `json:"run_id"`
	Status domain.RunStatus `json:"status"` // SUCCEEDED или FAILED
	Output json.RawMessage  `json:"output,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// appID — отправитель в свойствах AMQP сообщения.
const appID = "relay"

// Publish публикует сообщение в exchange с routing key.
// Тело — Message целиком, Type и MessageId дублируются в свойствах AMQP.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // переживёт рестарт RabbitMQ
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			AppId:        appID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		})
	})
	telemetry.RecordMQPublish(string(msg.Type), err)
	if err != nil {
		return fmt.Errorf("publish %s to %s/%s: %w", msg.Type, exchange, routingKey, err)
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
		"size", len(body),
	)
	return nil
}

// PublishRunPending публикует событие о run, ожидающем выполнения.
// Потребитель: relay-worker.
func (p *Publisher) PublishRunPending(ctx context.Context, payload RunPendingPayload) error {
	return p.PublishJSON(ctx, ExchangeRuns, RoutingKeyPending, MessageTypeRunPending, payload)
}

// PublishRunCompleted публикует событие о завершённом run.
func (p *Publisher) PublishRunCompleted(ctx context.Context, payload RunCompletedPayload) error {
	return p.PublishJSON(ctx, ExchangeRuns, RoutingKeyCompleted, MessageTypeRunCompleted, payload)
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}

	return p.Publish(ctx, exchange, routingKey, msg)
}
