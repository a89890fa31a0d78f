package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/jsonv"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/repo"
)

// Executor выполняет документ шагов. Реализуется orchestrator.Orchestrator.
type Executor interface {
	Execute(ctx context.Context, input jsonv.Value, cfg orchestrator.RunConfig) (*orchestrator.Execution, error)
}

// RunStore — хранилище runs. Реализуется repo.RunRepo.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
}

// PendingPublisher публикует run.pending. Реализуется mq.Publisher.
type PendingPublisher interface {
	PublishRunPending(ctx context.Context, payload mq.RunPendingPayload) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	executor  Executor
	runs      RunStore
	publisher PendingPublisher
	defaults  domain.RunOptions
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Executor (опционально; если nil — orchestrator.New с настройками по умолчанию)
	Executor Executor

	// Runs — история runs. nil — чтение runs отвечает 503.
	Runs RunStore

	// Publisher — очередь. nil — асинхронный запуск отвечает 503.
	Publisher PendingPublisher

	// Defaults — опции, подставляемые вместо незаданных в запросе.
	Defaults domain.RunOptions

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	executor := cfg.Executor
	if executor == nil {
		executor = orchestrator.New(orchestrator.Config{Logger: logger})
	}

	return &Handler{
		executor:  executor,
		runs:      cfg.Runs,
		publisher: cfg.Publisher,
		defaults:  cfg.Defaults,
		logger:    logger,
	}
}
