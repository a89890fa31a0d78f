package domain

import (
	"net/http"
	"strings"

	"github.com/shaiso/Relay/internal/jsonv"
)

// DefaultOutputKey — ключ результата шага без outputAs.
const DefaultOutputKey = "output"

// CollectFirst — значение collect, при котором из массива-ответа
// сохраняется только первый элемент.
const CollectFirst = "first"

// Step — декларативное описание одного HTTP-вызова в workflow.
//
// Step — неизменяемый вход run. Шаблоны в URLExt, Headers и Body
// разрешаются оркестратором непосредственно перед выполнением,
// результатом разрешения является новая копия Step.
type Step struct {
	// ID — уникальный идентификатор шага.
	// Используется в шаблонах {{steps.<id>.<path>}}.
	ID string `json:"id"`

	// Key — ключ шага, если вход был объектом (_key).
	Key string `json:"_key,omitempty"`

	// Group — имя группы. nil — группа по умолчанию.
	Group *string `json:"group"`

	// Method — HTTP-метод (поле method или action).
	Method string `json:"method,omitempty"`

	// Endpoint — базовый URL.
	Endpoint string `json:"endpoint,omitempty"`

	// URLExt — часть URL после Endpoint, может содержать шаблоны.
	URLExt string `json:"url_ext,omitempty"`

	// Headers — дополнительные заголовки запроса.
	Headers map[string]string `json:"headers,omitempty"`

	// Body — тело запроса. Null — тело отсутствует.
	Body jsonv.Value `json:"body"`

	// TimeoutMs — таймаут попытки, переопределяет значение run.
	TimeoutMs *int `json:"timeoutMs,omitempty"`

	// Retries — количество повторов, переопределяет значение run.
	Retries *int `json:"retries,omitempty"`

	// Collect — "first" или пусто.
	Collect string `json:"collect,omitempty"`

	// Extract — правила извлечения полей из ответа (в порядке объявления).
	Extract []ExtractRule `json:"extract,omitempty"`

	// OutputAs — dot-path в итоговом документе. Пусто — не задан.
	OutputAs string `json:"outputAs,omitempty"`
}

// ExtractRule — одно правило extract: имя поля → dot-path в ответе.
type ExtractRule struct {
	Field string `json:"field"`
	Path  string `json:"path"`
}

// URL возвращает итоговый URL запроса: Endpoint + URLExt.
func (s *Step) URL() string {
	return s.Endpoint + s.URLExt
}

// HTTPMethod возвращает метод в верхнем регистре, по умолчанию GET.
func (s *Step) HTTPMethod() string {
	if s.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(s.Method)
}

// GroupName возвращает имя группы для логов ("" для группы по умолчанию).
func (s *Step) GroupName() string {
	if s.Group == nil {
		return ""
	}
	return *s.Group
}

// HasBody проверяет, задано ли тело запроса.
func (s *Step) HasBody() bool {
	return !s.Body.IsNull()
}

// Group — упорядоченный набор шагов с одним тегом group.
//
// Шаги внутри группы выполняются последовательно,
// группы между собой — параллельно.
type Group struct {
	// Name — имя группы. nil — группа по умолчанию.
	Name *string `json:"name"`

	// Steps — шаги в порядке появления во входе.
	Steps []Step `json:"steps"`
}

// SameGroup сравнивает имена групп с учётом nil.
func SameGroup(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
