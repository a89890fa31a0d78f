package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run — запись о выполнении набора шагов.
//
// Run создаётся когда:
// - Пользователь отправляет шаги через API (синхронно или в очередь)
// - Worker получает сообщение run.pending
//
// ExecutionContext в Run не сохраняется: он живёт только во время выполнения.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Input — исходный документ шагов (массив или объект).
	Input json.RawMessage `json:"input,omitempty"`

	// Options — параметры запуска.
	Options RunOptions `json:"options"`

	// Output — итоговый OutputDocument. Nil, пока run не завершён.
	Output json.RawMessage `json:"output,omitempty"`

	// StepCount — количество шагов после нормализации.
	StepCount int `json:"step_count"`

	// GroupCount — количество групп.
	GroupCount int `json:"group_count"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING.
func NewRun(input json.RawMessage, opts RunOptions) *Run {
	return &Run{
		ID:        uuid.New(),
		Status:    RunStatusPending,
		Input:     input,
		Options:   opts,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED с результатом.
//
// Ошибки отдельных запросов не делают run FAILED:
// они попадают в output как fetchError.
func (r *Run) MarkSucceeded(output json.RawMessage, steps, groups int) {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
	r.Output = output
	r.StepCount = steps
	r.GroupCount = groups
}

// MarkFailed переводит run в статус FAILED с ошибкой.
// Используется только для фатальных ошибок входа.
func (r *Run) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}
