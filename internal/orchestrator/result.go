package orchestrator

import (
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
)

// Result — результат Run.
type Result struct {
	// Groups — результаты групп в порядке Partition.
	Groups []domain.GroupResult `json:"resultsByGroup"`

	// Context — итоговый ExecutionContext.
	Context *engine.Context `json:"context"`
}

// Flatten возвращает результаты шагов в порядке групп, затем шагов.
func (r *Result) Flatten() []domain.StepResult {
	return domain.Flatten(r.Groups)
}

// StepCount возвращает количество выполненных шагов.
func (r *Result) StepCount() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Steps)
	}
	return n
}

// Execution — результат Execute: документ и данные выполнения.
type Execution struct {
	Document engine.Document
	Result   *Result
}
