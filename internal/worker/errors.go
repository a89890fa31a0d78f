package worker

import "errors"

// Ошибки воркера.
var (
	// ErrRunNotPending — run уже выполняется или завершён.
	ErrRunNotPending = errors.New("run is not in PENDING status")

	// ErrRunInProgress — run уже обрабатывается этим воркером.
	ErrRunInProgress = errors.New("run already being processed")

	// ErrInvalidPayload — сообщение не содержит корректного run.
	ErrInvalidPayload = errors.New("invalid run payload")

	// ErrNoSource — не задан ни RabbitMQ, ни хранилище runs.
	ErrNoSource = errors.New("worker needs a queue connection or a run store")
)
