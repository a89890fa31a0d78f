package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/jsonv"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
)

// maxRequestBody — максимальный размер тела запроса (4MB).
const maxRequestBody = 4 << 20

// CreateRun выполняет шаги или ставит их в очередь.
// POST /api/v1/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	input, err := jsonv.Parse(req.Steps)
	if err != nil {
		BadRequest(w, "invalid steps: "+err.Error())
		return
	}

	// Форму входа проверяем до выполнения и до постановки в очередь
	if _, err := engine.Normalize(input); err != nil {
		BadRequest(w, err.Error())
		return
	}

	run := domain.NewRun(req.Steps, req.Options.WithDefaults(h.defaults))

	if req.Async {
		h.enqueueRun(w, r, run)
		return
	}

	logger := telemetry.WithRunID(telemetry.FromContext(r.Context()), run.ID.String())
	run.MarkRunning()

	exec, err := h.executor.Execute(telemetry.WithLogger(r.Context(), logger), input, orchestrator.RunConfigFrom(run.Options))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	output, err := exec.Document.MarshalJSON()
	if err != nil {
		InternalError(w, logger, err)
		return
	}
	snapshot, err := exec.Result.Context.MarshalJSON()
	if err != nil {
		InternalError(w, logger, err)
		return
	}

	run.MarkSucceeded(output, exec.Result.StepCount(), len(exec.Result.Groups))

	if h.runs != nil {
		// История не обязательна для ответа
		if err := h.runs.Create(r.Context(), run); err != nil {
			logger.Warn("failed to store run", "error", err)
		}
	}

	resp := RunFromDomain(*run)
	resp.Context = snapshot
	Success(w, resp)
}

// enqueueRun сохраняет run в статусе PENDING и публикует run.pending.
func (h *Handler) enqueueRun(w http.ResponseWriter, r *http.Request, run *domain.Run) {
	if h.publisher == nil {
		Unavailable(w, "run queue is not configured")
		return
	}

	logger := telemetry.WithRunID(telemetry.FromContext(r.Context()), run.ID.String())

	if h.runs != nil {
		if err := h.runs.Create(r.Context(), run); HandleRepoError(w, logger, err, "") {
			return
		}
	}

	payload := mq.RunPendingPayload{
		RunID:   run.ID,
		Input:   run.Input,
		Options: run.Options,
	}
	if err := h.publisher.PublishRunPending(r.Context(), payload); err != nil {
		// Без истории polling воркера run не найдёт
		if h.runs == nil {
			logger.Error("failed to publish run.pending", "error", err)
			Unavailable(w, "failed to enqueue run")
			return
		}
		logger.Warn("failed to publish run.pending, left for worker polling", "error", err)
	}

	Accepted(w, RunFromDomain(*run))
}

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		Unavailable(w, "run history is not configured")
		return
	}

	filter := repo.RunFilter{}
	query := r.URL.Query()

	if s := query.Get("status"); s != "" {
		status, ok := domain.ParseRunStatus(s)
		if !ok {
			BadRequest(w, "invalid status")
			return
		}
		filter.Status = status
	}

	var err error
	if filter.Limit, err = intParam(query.Get("limit"), repo.DefaultListLimit); err != nil {
		BadRequest(w, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(query.Get("offset"), 0); err != nil {
		BadRequest(w, "invalid offset")
		return
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, telemetry.FromContext(r.Context()), err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		Unavailable(w, "run history is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, telemetry.FromContext(r.Context()), err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// errNegative — отрицательное значение параметра.
var errNegative = errors.New("must not be negative")

// intParam парсит неотрицательный query параметр.
func intParam(s string, defaultVal int) (int, error) {
	if s == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errNegative
	}
	return n, nil
}
