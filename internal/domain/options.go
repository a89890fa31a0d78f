package domain

// RunOptions — параметры запуска в wire-формате (CLI, API, очередь).
//
// Все поля опциональны: указатели позволяют отличить явный 0
// (например, retries: 0 — без повторов) от отсутствующего значения.
type RunOptions struct {
	// Concurrency — максимальное количество параллельных групп (default: 4).
	Concurrency *int `json:"concurrency,omitempty"`

	// Fetch — выполнять HTTP-запросы. false — dry-run, body шага
	// после шаблонизации становится ответом (default: false).
	Fetch *bool `json:"fetch,omitempty"`

	// TimeoutMs — таймаут одной попытки по умолчанию (default: 10000).
	TimeoutMs *int `json:"timeoutMs,omitempty"`

	// Retries — количество повторов по умолчанию (default: 1).
	Retries *int `json:"retries,omitempty"`

	// BackoffMs — начальная задержка между попытками, удваивается (default: 300).
	BackoffMs *int `json:"backoffMs,omitempty"`
}

// IntPtr возвращает указатель на значение.
func IntPtr(v int) *int {
	return &v
}

// BoolPtr возвращает указатель на значение.
func BoolPtr(v bool) *bool {
	return &v
}

// StringPtr возвращает указатель на значение.
func StringPtr(v string) *string {
	return &v
}

// WithDefaults заполняет незаданные поля значениями из def.
// Явно заданные поля o не меняются.
func (o RunOptions) WithDefaults(def RunOptions) RunOptions {
	if o.Concurrency == nil {
		o.Concurrency = def.Concurrency
	}
	if o.Fetch == nil {
		o.Fetch = def.Fetch
	}
	if o.TimeoutMs == nil {
		o.TimeoutMs = def.TimeoutMs
	}
	if o.Retries == nil {
		o.Retries = def.Retries
	}
	if o.BackoffMs == nil {
		o.BackoffMs = def.BackoffMs
	}
	return o
}
