package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
)

// Run DTOs

// CreateRunRequest — запрос на выполнение шагов.
type CreateRunRequest struct {
	// Steps — документ шагов: массив или объект.
	// Хранится как есть, чтобы не потерять порядок ключей.
	Steps json.RawMessage `json:"steps"`

	Options domain.RunOptions `json:"options"`

	// Async — поставить run в очередь вместо синхронного выполнения.
	Async bool `json:"async,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID         uuid.UUID         `json:"id"`
	Status     domain.RunStatus  `json:"status"`
	Options    domain.RunOptions `json:"options"`
	Output     json.RawMessage   `json:"output,omitempty"`
	Context    json.RawMessage   `json:"context,omitempty"`
	StepCount  int               `json:"step_count"`
	GroupCount int               `json:"group_count"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:         r.ID,
		Status:     r.Status,
		Options:    r.Options,
		Output:     r.Output,
		StepCount:  r.StepCount,
		GroupCount: r.GroupCount,
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}
