package mq

import (
	"context"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// Exchanges.
const (
	ExchangeRuns Exchange = "relay.runs"
	ExchangeDLQ  Exchange = "relay.dlq"
)

// Queues.
const (
	QueueRunsPending   Queue = "runs.pending"
	QueueRunsCompleted Queue = "runs.completed"
	QueueDLQRuns       Queue = "dlq.runs"
)

// Routing keys.
const (
	RoutingKeyPending   RoutingKey = "pending"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyDLQRuns   RoutingKey = "runs"
)

// completedTTL — сколько событие run.completed ждёт подписчика.
const completedTTL = 24 * time.Hour

type queueSpec struct {
	name Queue
	args amqp.Table
}

type bindingSpec struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

var exchanges = []Exchange{ExchangeRuns, ExchangeDLQ}

var queues = []queueSpec{
	// Отклонённые worker'ом сообщения уходят в dlq.runs
	{QueueRunsPending, amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
	}},
	{QueueRunsCompleted, amqp.Table{
		"x-message-ttl": completedTTL.Milliseconds(),
	}},
	{QueueDLQRuns, nil},
}

var bindings = []bindingSpec{
	{QueueRunsPending, RoutingKeyPending, ExchangeRuns},
	{QueueRunsCompleted, RoutingKeyCompleted, ExchangeRuns},
	{QueueDLQRuns, RoutingKeyDLQRuns, ExchangeDLQ},
}

// SetupTopology объявляет exchanges, queues и bindings.
// Объявления идемпотентны, поэтому API и worker вызывают её оба.
// Изменение аргументов существующей очереди RabbitMQ отклонит
// (PRECONDITION_FAILED), такую очередь нужно удалить вручную.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, name := range exchanges {
			// durable, не auto-delete, не internal
			if err := ch.ExchangeDeclare(string(name), amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", name, err)
			}
		}

		for _, q := range queues {
			// durable, не exclusive
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		for _, b := range bindings {
			if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// Describe возвращает привязки в виде "exchange/key→queue" для логов.
func Describe() string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, fmt.Sprintf("%s/%s→%s", b.exchange, b.routingKey, b.queue))
	}
	return strings.Join(parts, ", ")
}
