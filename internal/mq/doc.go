// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - run.pending    — run ожидает выполнения воркером
//   - run.completed  — run завершён, в payload итоговый документ
//
// Exchanges:
//   - relay.runs     — события runs
//   - relay.dlq      — dead letter queue
package mq
