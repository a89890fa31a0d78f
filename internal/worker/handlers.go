package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/jsonv"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
)

// handleRunPending обрабатывает событие из очереди runs.pending.
func (w *Worker) handleRunPending(ctx context.Context, delivery *mq.Delivery) error {
	logger := telemetry.FromContext(ctx)

	// Парсим payload
	payload, err := mq.ParsePayload[mq.RunPendingPayload](&delivery.Message)
	if err != nil {
		return err
	}

	logger.Debug("received run.pending event", "run_id", payload.RunID, "redelivered", delivery.Redelivered)

	if err := w.Process(ctx, payload); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if isSkip(err) {
			logger.Debug("run not processed", "run_id", payload.RunID, "reason", err)
			return nil
		}
		return err
	}

	return nil
}

// Process выполняет один run.
//
// Возвращает ошибку только для инфраструктурных сбоев (хранилище)
// и для run, который уже не в PENDING (ErrRunNotPending, ErrRunInProgress).
// Невалидный вход завершает run со статусом FAILED без ошибки.
// Начатый run доводится до конца: отмена ctx после перевода в RUNNING
// не прерывает шаги, сохранение и публикацию результата.
func (w *Worker) Process(ctx context.Context, payload mq.RunPendingPayload) error {
	if payload.RunID == uuid.Nil {
		return fmt.Errorf("%w: %w: missing run_id", mq.ErrPermanent, ErrInvalidPayload)
	}

	if !w.acquire(payload.RunID) {
		return ErrRunInProgress
	}
	defer w.release(payload.RunID)

	// 1. Загружаем или создаём run
	run, err := w.loadRun(ctx, payload)
	if err != nil {
		return err
	}

	// 2. Проверяем статус
	if run.Status != domain.RunStatusPending {
		return ErrRunNotPending
	}

	// 3. Помечаем как running
	runCtx := context.WithoutCancel(ctx)
	run.MarkRunning()
	if err := w.save(runCtx, run); err != nil {
		return fmt.Errorf("update run to running: %w", err)
	}

	logger := telemetry.WithRunID(w.logger, run.ID.String())
	logger.Info("run started")

	// 4. Выполняем
	w.execute(telemetry.WithLogger(runCtx, logger), run)

	// 5. Сохраняем результат
	if err := w.save(runCtx, run); err != nil {
		return fmt.Errorf("update run to %s: %w", run.Status, err)
	}

	logger.Info("run finished",
		"status", run.Status,
		"steps", run.StepCount,
		"groups", run.GroupCount,
		"duration", run.Duration(),
	)

	w.publishCompletion(runCtx, run)
	return nil
}

// execute выполняет run и переводит его в финальный статус.
func (w *Worker) execute(ctx context.Context, run *domain.Run) {
	input, err := jsonv.Parse(run.Input)
	if err != nil {
		run.MarkFailed(fmt.Sprintf("parse input: %v", err))
		return
	}

	exec, err := w.executor.Execute(ctx, input, orchestrator.RunConfigFrom(run.Options.WithDefaults(w.defaults)))
	if err != nil {
		// Вход нельзя привести к шагам — повтор не поможет
		run.MarkFailed(err.Error())
		return
	}

	output, err := exec.Document.MarshalJSON()
	if err != nil {
		run.MarkFailed(fmt.Sprintf("marshal output: %v", err))
		return
	}

	run.MarkSucceeded(output, exec.Result.StepCount(), len(exec.Result.Groups))
}

// loadRun загружает run из хранилища или создаёт его из payload.
func (w *Worker) loadRun(ctx context.Context, payload mq.RunPendingPayload) (*domain.Run, error) {
	if w.runs == nil {
		run := domain.NewRun(payload.Input, payload.Options)
		run.ID = payload.RunID
		return run, nil
	}

	run, err := w.runs.GetByID(ctx, payload.RunID)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("get run: %w", err)
	}

	// Run опубликован без записи в БД (API без истории)
	run = domain.NewRun(payload.Input, payload.Options)
	run.ID = payload.RunID
	if err := w.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// save сохраняет run, если хранилище задано.
func (w *Worker) save(ctx context.Context, run *domain.Run) error {
	if w.runs == nil {
		return nil
	}
	return w.runs.Update(ctx, run)
}

// publishCompletion публикует событие run.completed.
func (w *Worker) publishCompletion(ctx context.Context, run *domain.Run) {
	if w.publisher == nil {
		w.logger.Warn("publisher not available, skipping run.completed publish",
			"run_id", run.ID,
		)
		return
	}

	payload := mq.RunCompletedPayload{
		RunID:  run.ID,
		Status: run.Status,
		Output: run.Output,
		Error:  run.Error,
	}

	if err := w.publisher.PublishRunCompleted(ctx, payload); err != nil {
		// Не возвращаем ошибку — run уже сохранён
		w.logger.Warn("failed to publish run.completed",
			"run_id", run.ID,
			"error", err,
		)
	}
}

// acquire отмечает run как выполняемый этим процессом.
func (w *Worker) acquire(id uuid.UUID) bool {
	w.inFlightMu.Lock()
	defer w.inFlightMu.Unlock()

	if _, ok := w.inFlight[id]; ok {
		return false
	}
	w.inFlight[id] = struct{}{}
	return true
}

func (w *Worker) release(id uuid.UUID) {
	w.inFlightMu.Lock()
	delete(w.inFlight, id)
	w.inFlightMu.Unlock()
}

// isSkip проверяет, что run пропущен и сообщение можно подтвердить.
func isSkip(err error) bool {
	return errors.Is(err, ErrRunNotPending) || errors.Is(err, ErrRunInProgress)
}
