package mq

import "errors"

// Ошибки очереди.
var (
	// ErrNoChannel — AMQP канал недоступен (нет соединения).
	ErrNoChannel = errors.New("no channel available")

	// ErrConnectionClosed — соединение закрыто через Close.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrPermanent — обработчик не сможет обработать сообщение никогда.
	// Такое сообщение отправляется в DLQ, а не возвращается в очередь.
	ErrPermanent = errors.New("permanent failure")
)
