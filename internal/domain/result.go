package domain

import "github.com/shaiso/Relay/internal/jsonv"

// StepResult — шаг и его ответ.
//
// Response — декодированное тело ответа, {text: ...} для не-JSON ответа
// или значение вида {fetchError, httpBody?, httpText?} при ошибке.
// В dry-run режиме — body шага после шаблонизации.
type StepResult struct {
	Step     Step        `json:"step"`
	Response jsonv.Value `json:"response"`
}

// GroupResult — результаты шагов одной группы в порядке выполнения.
type GroupResult struct {
	Name  *string      `json:"groupName"`
	Steps []StepResult `json:"steps"`
}

// Flatten разворачивает результаты групп в плоский список:
// порядок групп, затем порядок шагов внутри группы.
func Flatten(groups []GroupResult) []StepResult {
	n := 0
	for _, g := range groups {
		n += len(g.Steps)
	}

	out := make([]StepResult, 0, n)
	for _, g := range groups {
		out = append(out, g.Steps...)
	}
	return out
}
