package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/jsonv"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/repo"
)

// Default configuration values.
const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 20
	defaultPrefetch     = 4
)

// RunStore — хранилище runs. Реализуется repo.RunRepo.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	Update(ctx context.Context, run *domain.Run) error
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
}

// CompletionPublisher публикует run.completed. Реализуется mq.Publisher.
type CompletionPublisher interface {
	PublishRunCompleted(ctx context.Context, payload mq.RunCompletedPayload) error
}

// Executor выполняет документ шагов. Реализуется orchestrator.Orchestrator.
type Executor interface {
	Execute(ctx context.Context, input jsonv.Value, cfg orchestrator.RunConfig) (*orchestrator.Execution, error)
}

// Worker выполняет runs из очереди runs.pending.
type Worker struct {
	runs      RunStore
	publisher CompletionPublisher
	executor  Executor
	conn      *mq.Connection
	defaults  domain.RunOptions

	// Consumer
	consumer *mq.Consumer
	prefetch int

	// Polling configuration
	pollInterval time.Duration
	batchSize    int

	// Runs, выполняемые этим процессом
	inFlight   map[uuid.UUID]struct{}
	inFlightMu sync.Mutex

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    atomic.Bool
}

// Config — конфигурация Worker.
type Config struct {
	// Runs — хранилище runs. nil — история не ведётся, polling выключен.
	Runs RunStore

	// MQ
	Publisher CompletionPublisher
	Conn      *mq.Connection

	// Executor (опционально; если nil — orchestrator.New с настройками по умолчанию)
	Executor Executor

	// Defaults — опции, подставляемые вместо незаданных в run.
	Defaults domain.RunOptions

	// Prefetch — количество сообщений, получаемых заранее (default: 4).
	Prefetch int

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 30s)
	BatchSize    int           // количество runs за один poll (default: 20)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	executor := cfg.Executor
	if executor == nil {
		executor = orchestrator.New(orchestrator.Config{Logger: logger})
	}

	return &Worker{
		runs:         cfg.Runs,
		publisher:    cfg.Publisher,
		executor:     executor,
		conn:         cfg.Conn,
		defaults:     cfg.Defaults,
		prefetch:     prefetch,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		inFlight:     make(map[uuid.UUID]struct{}),
		logger:       logger,
	}
}

// Start запускает consumer runs.pending (если задано подключение к RabbitMQ)
// и polling PENDING runs (если задан RunStore). Без обоих источников
// возвращает ErrNoSource.
func (w *Worker) Start(ctx context.Context) error {
	if w.conn == nil && w.runs == nil {
		return ErrNoSource
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsPending),
			Handler:  w.handleRunPending,
			Prefetch: w.prefetch,
			Logger:   w.logger,
		})
		w.goRun(func() {
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("run consumer stopped", "error", err)
			}
		})
	}

	if w.runs != nil {
		w.goRun(func() { w.pollLoop(ctx) })
	}

	w.logger.Info("worker started",
		"queue", w.conn != nil,
		"polling", w.runs != nil,
		"prefetch", w.prefetch,
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
	)
	return nil
}

func (w *Worker) goRun(fn func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}

// Stop останавливает приём новых runs и ждёт завершения текущих.
func (w *Worker) Stop() {
	if !w.stopped.CompareAndSwap(false, true) {
		return
	}

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, вызван ли Stop.
func (w *Worker) IsStopped() bool {
	return w.stopped.Load()
}

// pollLoop подхватывает PENDING runs, которые не дошли через очередь.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу: runs, созданные пока worker был выключен
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выбирает PENDING runs пачками по batchSize, пока
// пачка полная и хотя бы один run из неё выполнен.
func (w *Worker) poll(ctx context.Context) {
	for ctx.Err() == nil {
		pending, err := w.runs.List(ctx, repo.RunFilter{
			Status: domain.RunStatusPending,
			Limit:  w.batchSize,
		})
		if err != nil {
			w.logger.Error("failed to list pending runs", "error", err)
			return
		}
		if len(pending) == 0 {
			return
		}

		w.logger.Debug("poll found pending runs", "count", len(pending))

		processed := 0
		for i := range pending {
			if ctx.Err() != nil {
				return
			}
			if w.processPolled(ctx, &pending[i]) {
				processed++
			}
		}

		if len(pending) < w.batchSize || processed == 0 {
			return
		}
	}
}

// processPolled выполняет run, найденный polling'ом.
func (w *Worker) processPolled(ctx context.Context, run *domain.Run) bool {
	err := w.Process(ctx, mq.RunPendingPayload{
		RunID:   run.ID,
		Input:   run.Input,
		Options: run.Options,
	})
	if err == nil {
		return true
	}
	if !isSkip(err) {
		w.logger.Error("failed to process run from poll", "run_id", run.ID, "error", err)
	}
	return false
}
