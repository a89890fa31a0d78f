package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Handler обрабатывает одно сообщение.
//
// nil — сообщение подтверждается. Ошибка с ErrPermanent отправляет его в DLQ,
// любая другая возвращает в очередь один раз (см. settle).
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	Message Message

	// Redelivered — сообщение уже доставлялось и не было подтверждено.
	Redelivered bool
}

// Исходы доставки (метка relay_mq_deliveries_total).
const (
	OutcomeAck        = "ack"
	OutcomeRequeue    = "requeue"
	OutcomeDeadLetter = "dead_letter"
)

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue   string
	Handler Handler

	// Prefetch — сколько неподтверждённых сообщений держит consumer (default: 1).
	Prefetch int

	Logger *slog.Logger
}

// Consumer читает очередь с ручным подтверждением и
// перезапускается после reconnect соединения.
type Consumer struct {
	conn     *Connection
	queue    string
	tag      string
	handler  Handler
	prefetch int
	logger   *slog.Logger

	cancelFunc context.CancelFunc
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		queue:    cfg.Queue,
		tag:      "relay-" + cfg.Queue + "-" + uuid.NewString()[:8],
		handler:  cfg.Handler,
		prefetch: cfg.Prefetch,
		logger:   cfg.Logger.With("queue", cfg.Queue),
	}
}

// Start читает очередь до отмены ctx или Stop. Возвращает ctx.Err().
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer cancel()

	for {
		// Берём до подписки, чтобы не пропустить reconnect
		reconnected := c.conn.ReconnectNotify()

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started", "tag", c.tag, "prefetch", c.prefetch)
			c.drain(ctx, deliveries)
			if ctx.Err() == nil {
				c.logger.Warn("deliveries channel closed, waiting for reconnect")
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reconnected:
		}
	}
}

// subscribe настраивает QoS и начинает потребление.
func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	// autoAck=false: подтверждаем после обработки
	deliveries, err := ch.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}

	return deliveries, nil
}

// drain обрабатывает сообщения, пока канал доставки открыт.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, raw)
		}
	}
}

// handle обрабатывает одно сообщение и подтверждает или отклоняет его.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message", "error", err, "size", len(raw.Body))
		c.finish(raw, OutcomeDeadLetter)
		return
	}

	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)
	logger.Debug("received message", "redelivered", raw.Redelivered)

	err := c.handler(telemetry.WithLogger(ctx, logger), &Delivery{
		Message:     msg,
		Redelivered: raw.Redelivered,
	})

	outcome := settle(err, raw.Redelivered, ctx.Err() != nil)
	if err != nil {
		logger.Error("handler failed", "outcome", outcome, "error", err)
	}
	c.finish(raw, outcome)
}

// finish выполняет ack/nack по исходу.
func (c *Consumer) finish(raw amqp.Delivery, outcome string) {
	var err error
	switch outcome {
	case OutcomeAck:
		err = raw.Ack(false)
	case OutcomeRequeue:
		err = raw.Nack(false, true)
	default:
		err = raw.Nack(false, false)
	}
	if err != nil {
		c.logger.Warn("failed to settle delivery", "outcome", outcome, "error", err)
	}

	telemetry.RecordMQDelivery(c.queue, outcome)
}

// settle выбирает исход доставки.
//
// При остановке сообщение всегда возвращается в очередь. Повторная
// неудача уже переданного сообщения отправляет его в DLQ.
func settle(err error, redelivered, stopping bool) string {
	switch {
	case err == nil:
		return OutcomeAck
	case stopping:
		return OutcomeRequeue
	case errors.Is(err, ErrPermanent), redelivered:
		return OutcomeDeadLetter
	default:
		return OutcomeRequeue
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload декодирует payload сообщения в T.
//
// Payload хранится как raw JSON, поэтому вложенные документы
// (например, шаги run) сохраняют порядок ключей.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	if len(msg.Payload) == 0 {
		return result, fmt.Errorf("%w: empty payload", ErrPermanent)
	}

	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return result, fmt.Errorf("%w: unmarshal payload: %v", ErrPermanent, err)
	}

	return result, nil
}
