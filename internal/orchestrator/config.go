package orchestrator

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/steps"
)

// DefaultConcurrency — количество параллельных групп по умолчанию.
const DefaultConcurrency = 4

// RunConfig — параметры выполнения одного run.
type RunConfig struct {
	// Concurrency — максимальное количество параллельных групп.
	// Значение <= 0 заменяется на DefaultConcurrency.
	Concurrency int

	// Fetch — выполнять HTTP-запросы. false — dry-run.
	Fetch bool

	// Timeout, Retries, Backoff — параметры попытки по умолчанию.
	// Шаг может переопределить Timeout и Retries.
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// DefaultRunConfig возвращает параметры по умолчанию:
// 4 группы, dry-run, таймаут 10s, один повтор, backoff 300ms.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Concurrency: DefaultConcurrency,
		Fetch:       false,
		Timeout:     steps.DefaultTimeout,
		Retries:     steps.DefaultRetries,
		Backoff:     steps.DefaultBackoff,
	}
}

// RunConfigFrom накладывает явно заданные опции на значения по умолчанию.
func RunConfigFrom(opts domain.RunOptions) RunConfig {
	cfg := DefaultRunConfig()

	if opts.Concurrency != nil {
		cfg.Concurrency = *opts.Concurrency
	}
	if opts.Fetch != nil {
		cfg.Fetch = *opts.Fetch
	}
	if opts.TimeoutMs != nil {
		cfg.Timeout = time.Duration(*opts.TimeoutMs) * time.Millisecond
	}
	if opts.Retries != nil {
		cfg.Retries = *opts.Retries
	}
	if opts.BackoffMs != nil {
		cfg.Backoff = time.Duration(*opts.BackoffMs) * time.Millisecond
	}

	return cfg.normalize()
}

// normalize заменяет недопустимые значения.
func (c RunConfig) normalize() RunConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	return c
}

// invokeOptions возвращает параметры попытки для шага.
func (c RunConfig) invokeOptions(step *domain.Step) steps.InvokeOptions {
	return steps.InvokeOptions{
		Timeout: c.Timeout,
		Retries: c.Retries,
		Backoff: c.Backoff,
	}.For(step)
}

// Переменные окружения с опциями запуска по умолчанию для сервисов.
const (
	EnvConcurrency = "RELAY_CONCURRENCY"
	EnvFetch       = "RELAY_FETCH"
	EnvTimeoutMs   = "RELAY_TIMEOUT_MS"
	EnvRetries     = "RELAY_RETRIES"
	EnvBackoffMs   = "RELAY_BACKOFF_MS"
)

// OptionsFromEnv читает опции запуска по умолчанию из окружения.
// Незаданные переменные остаются nil.
func OptionsFromEnv() (domain.RunOptions, error) {
	var opts domain.RunOptions

	ints := []struct {
		env string
		dst **int
	}{
		{EnvConcurrency, &opts.Concurrency},
		{EnvTimeoutMs, &opts.TimeoutMs},
		{EnvRetries, &opts.Retries},
		{EnvBackoffMs, &opts.BackoffMs},
	}
	for _, item := range ints {
		v := os.Getenv(item.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.RunOptions{}, fmt.Errorf("%s: %w", item.env, err)
		}
		*item.dst = domain.IntPtr(n)
	}

	if v := os.Getenv(EnvFetch); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return domain.RunOptions{}, fmt.Errorf("%s: %w", EnvFetch, err)
		}
		opts.Fetch = domain.BoolPtr(b)
	}

	return opts, nil
}
