package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/jsonv"
	"github.com/shaiso/Relay/internal/steps"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Invoker выполняет HTTP-вызов шага.
// Реализуется steps.HTTPInvoker.
type Invoker interface {
	Invoke(ctx context.Context, step *domain.Step, opts steps.InvokeOptions) jsonv.Value
}

// Orchestrator выполняет runs.
//
// Orchestrator не хранит состояния между runs и может использоваться
// из нескольких горутин одновременно.
type Orchestrator struct {
	invoker Invoker
	logger  *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Invoker — исполнитель HTTP-вызовов.
	// По умолчанию steps.HTTPInvoker с клиентом по умолчанию.
	Invoker Invoker

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	invoker := cfg.Invoker
	if invoker == nil {
		invoker = steps.NewHTTPInvoker(steps.Config{Logger: logger})
	}

	return &Orchestrator{
		invoker: invoker,
		logger:  logger,
	}
}

// Execute выполняет полный цикл: нормализация входа, выполнение групп,
// сборка OutputDocument.
//
// Ошибка возвращается только для входа, который нельзя привести к списку
// шагов. Сбои запросов становятся данными в документе.
func (o *Orchestrator) Execute(ctx context.Context, input jsonv.Value, cfg RunConfig) (*Execution, error) {
	start := time.Now()

	stepList, err := engine.Normalize(input)
	if err != nil {
		telemetry.RecordRun(domain.RunStatusFailed.String(), time.Since(start))
		return nil, err
	}

	result := o.Run(ctx, stepList, cfg)
	doc := engine.Assemble(result.Groups)

	telemetry.RecordRun(domain.RunStatusSucceeded.String(), time.Since(start))

	return &Execution{
		Document: doc,
		Result:   result,
	}, nil
}

// Run выполняет шаги.
//
// Группы разбираются пулом из min(Concurrency, число групп) воркеров:
// каждый воркер берёт следующий индекс группы из общего счётчика
// и выполняет группу целиком. Результаты сохраняются по индексу группы,
// поэтому порядок Result.Groups совпадает с порядком Partition.
func (o *Orchestrator) Run(ctx context.Context, stepList []domain.Step, cfg RunConfig) *Result {
	cfg = cfg.normalize()
	groups := Partition(stepList)
	execCtx := engine.NewContext()
	results := make([]domain.GroupResult, len(groups))

	workers := min(cfg.Concurrency, len(groups))

	// Логгер из context (например, с run_id) приоритетнее
	logger := o.logger
	if l, ok := ctx.Value(telemetry.CtxLogger).(*slog.Logger); ok {
		logger = l
	}

	start := time.Now()
	logger.Info("run started",
		"steps", len(stepList),
		"groups", len(groups),
		"workers", workers,
		"fetch", cfg.Fetch,
	)

	var next atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx := int(next.Add(1) - 1)
				if idx >= len(groups) {
					return
				}
				results[idx] = o.runGroup(ctx, logger, groups[idx], execCtx, cfg)
			}
		}()
	}

	wg.Wait()

	logger.Info("run finished",
		"steps", len(stepList),
		"groups", len(groups),
		"duration", time.Since(start),
	)

	return &Result{
		Groups:  results,
		Context: execCtx,
	}
}

// runGroup выполняет шаги группы последовательно.
func (o *Orchestrator) runGroup(ctx context.Context, logger *slog.Logger, group domain.Group, execCtx *engine.Context, cfg RunConfig) domain.GroupResult {
	telemetry.GroupStarted()
	defer telemetry.GroupFinished()

	logger = telemetry.WithGroup(logger, group.Name)
	logger.Debug("group started", "steps", len(group.Steps))
	start := time.Now()

	out := domain.GroupResult{
		Name:  group.Name,
		Steps: make([]domain.StepResult, 0, len(group.Steps)),
	}

	for i := range group.Steps {
		step := group.Steps[i]
		response := o.runStep(ctx, logger, &step, execCtx, cfg)
		out.Steps = append(out.Steps, domain.StepResult{
			Step:     step,
			Response: response,
		})
	}

	logger.Debug("group finished", "duration", time.Since(start))
	return out
}

// runStep выполняет один шаг и записывает его результат в контекст.
func (o *Orchestrator) runStep(ctx context.Context, logger *slog.Logger, step *domain.Step, execCtx *engine.Context, cfg RunConfig) jsonv.Value {
	logger = telemetry.WithStepID(logger, step.ID)
	start := time.Now()

	// Шаблоны разрешаются по текущему состоянию контекста
	templated := *step
	templated.URLExt = engine.ResolveString(step.URLExt, execCtx)
	templated.Headers = engine.ResolveHeaders(step.Headers, execCtx)
	templated.Body = engine.Resolve(step.Body, execCtx)

	var response jsonv.Value
	outcome := telemetry.StepDryRun

	if cfg.Fetch {
		response = o.invoker.Invoke(ctx, &templated, cfg.invokeOptions(step))
		outcome = telemetry.StepOK
		if steps.IsFetchError(response) {
			outcome = telemetry.StepFetchError
		}
	} else {
		response = templated.Body
	}

	if step.Collect == domain.CollectFirst {
		if items, ok := response.AsArray(); ok {
			if len(items) > 0 {
				response = items[0]
			} else {
				response = jsonv.Null()
			}
		}
	}

	execCtx.Set(step.ID, response)

	// extract заменяет запись шага картой извлечённых полей
	if len(step.Extract) > 0 {
		extracted := jsonv.NewObject()
		for _, rule := range step.Extract {
			v, ok := response.Lookup(rule.Path)
			if !ok {
				v = jsonv.Null()
			}
			extracted.Set(rule.Field, v)
		}
		execCtx.Set(step.ID, jsonv.Obj(extracted))
	}

	telemetry.RecordStep(outcome)
	logger.Debug("step finished",
		"method", templated.HTTPMethod(),
		"url", templated.URL(),
		"outcome", outcome,
		"duration", time.Since(start),
	)

	return response
}
