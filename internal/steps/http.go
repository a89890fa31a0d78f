package steps

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/jsonv"
	"github.com/shaiso/Relay/internal/telemetry"
)

const (
	// Значения по умолчанию.
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 1
	DefaultBackoff = 300 * time.Millisecond

	maxResponseBody = 10 * 1024 * 1024 // 10 MB
	contentTypeJSON = "application/json"
)

// Ключи значения-ответа.
const (
	KeyFetchError = "fetchError"
	KeyHTTPBody   = "httpBody"
	KeyHTTPText   = "httpText"
	KeyText       = "text"
)

// InvokeOptions — параметры вызова одного шага.
type InvokeOptions struct {
	// Timeout — таймаут одной попытки. 0 — без таймаута.
	Timeout time.Duration

	// Retries — количество повторов после первой попытки.
	// Всего попыток Retries+1.
	Retries int

	// Backoff — пауза перед первым повтором, удваивается на каждом следующем.
	Backoff time.Duration
}

// DefaultInvokeOptions возвращает параметры по умолчанию:
// таймаут 10s, один повтор, backoff 300ms.
func DefaultInvokeOptions() InvokeOptions {
	return InvokeOptions{
		Timeout: DefaultTimeout,
		Retries: DefaultRetries,
		Backoff: DefaultBackoff,
	}
}

// For возвращает параметры с учётом переопределений шага
// (timeoutMs, retries). Backoff шагом не переопределяется.
func (o InvokeOptions) For(step *domain.Step) InvokeOptions {
	out := o
	if step.TimeoutMs != nil {
		out.Timeout = time.Duration(*step.TimeoutMs) * time.Millisecond
	}
	if step.Retries != nil {
		out.Retries = *step.Retries
	}
	return out
}

// SleepFunc ожидает d или отмены ctx.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config — конфигурация HTTPInvoker.
type Config struct {
	// Client — HTTP клиент. По умолчанию клиент без общего таймаута:
	// время попытки ограничивает InvokeOptions.Timeout.
	Client *http.Client

	// Logger — логгер. По умолчанию slog.Default().
	Logger *slog.Logger

	// Sleep — ожидание между попытками. По умолчанию SleepContext.
	Sleep SleepFunc

	// MaxResponseBody — предел тела ответа в байтах (default: 10 MB).
	// Ответ больше предела становится fetchError без повторов.
	MaxResponseBody int64
}

// HTTPInvoker выполняет HTTP-вызов шага с таймаутом, повторами
// и экспоненциальным backoff.
//
// Формы результата:
//
//	2xx + JSON content-type   → декодированное тело
//	2xx + иной content-type   → {"text": "<raw>"}
//	не-2xx + JSON             → {"fetchError": "HTTP 404 Not Found", "httpBody": <parsed>}
//	не-2xx + иное             → {"fetchError": "HTTP 500 Internal Server Error", "httpText": "<raw>"}
//	ошибка сети / таймаут     → {"fetchError": "<error>"} после исчерпания повторов
//	тело больше предела       → {"fetchError": "response body exceeds limit (...)"} сразу
//
// Повторяются только ошибки сети, таймауты и недекодируемый JSON успешного
// ответа. HTTP-ответ с кодом не из 2xx считается окончательным.
type HTTPInvoker struct {
	client  *http.Client
	logger  *slog.Logger
	sleep   SleepFunc
	maxBody int64
}

// NewHTTPInvoker создаёт новый HTTPInvoker.
func NewHTTPInvoker(cfg Config) *HTTPInvoker {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = SleepContext
	}
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = maxResponseBody
	}

	return &HTTPInvoker{
		client:  cfg.Client,
		logger:  cfg.Logger,
		sleep:   cfg.Sleep,
		maxBody: cfg.MaxResponseBody,
	}
}

// Invoke выполняет шаг, у которого уже разрешены шаблоны.
//
// Invoke никогда не возвращает ошибку: любой сбой становится
// значением с ключом fetchError.
func (i *HTTPInvoker) Invoke(ctx context.Context, step *domain.Step, opts InvokeOptions) jsonv.Value {
	url := step.URL()
	if url == "" {
		return fetchError(ErrNoEndpoint.Error())
	}

	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	backoff := opts.Backoff

	logger := telemetry.WithStepID(i.logger, step.ID)
	lastErr := ErrRetriesExhausted

	for attempt := 0; attempt <= retries; attempt++ {
		resp, err := i.attempt(ctx, step, url, opts.Timeout)
		if err == nil {
			return resp
		}
		lastErr = err

		if attempt >= retries {
			break
		}

		logger.Debug("http attempt failed, retrying",
			"attempt", attempt,
			"delay", backoff,
			"error", err,
		)

		// Ждём с учётом context
		if err := i.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
		backoff *= 2
	}

	logger.Warn("http request failed", "url", url, "error", lastErr)
	return fetchError(lastErr.Error())
}

// attempt выполняет одну попытку.
// Ошибка означает, что попытку можно повторить.
func (i *HTTPInvoker) attempt(ctx context.Context, step *domain.Step, url string, timeout time.Duration) (jsonv.Value, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := buildRequest(ctx, step, url)
	if err != nil {
		return jsonv.Null(), fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := i.client.Do(req)
	if err != nil {
		telemetry.RecordHTTPAttempt(telemetry.AttemptTransport, time.Since(start))
		return jsonv.Null(), err
	}
	defer resp.Body.Close()

	// Лишний байт сверх предела отличает полный ответ от обрезанного
	body, err := io.ReadAll(io.LimitReader(resp.Body, i.maxBody+1))
	if err != nil {
		telemetry.RecordHTTPAttempt(telemetry.AttemptTransport, time.Since(start))
		return jsonv.Null(), fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > i.maxBody {
		// Повтор вернёт то же тело
		telemetry.RecordHTTPAttempt(telemetry.AttemptTooLarge, time.Since(start))
		return fetchError(fmt.Sprintf("%v (%d bytes)", ErrResponseTooLarge, i.maxBody)), nil
	}

	isJSON := strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), contentTypeJSON)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		telemetry.RecordHTTPAttempt(telemetry.AttemptHTTPError, time.Since(start))
		return httpError(resp.StatusCode, body, isJSON), nil
	}

	if !isJSON {
		telemetry.RecordHTTPAttempt(telemetry.AttemptOK, time.Since(start))
		wrapped := jsonv.NewObject()
		wrapped.Set(KeyText, jsonv.String(string(body)))
		return jsonv.Obj(wrapped), nil
	}

	v, err := jsonv.Parse(body)
	if err != nil {
		telemetry.RecordHTTPAttempt(telemetry.AttemptDecodeError, time.Since(start))
		return jsonv.Null(), fmt.Errorf("%w: %v", ErrDecodeResponse, err)
	}

	telemetry.RecordHTTPAttempt(telemetry.AttemptOK, time.Since(start))
	return v, nil
}

// buildRequest создаёт HTTP запрос.
//
// Заголовок Accept: application/json выставляется всегда. Для POST, PUT
// и PATCH объект или массив сериализуется в JSON с Content-Type
// application/json, строка отправляется как есть, прочие значения
// не отправляются. Заголовки шага применяются последними.
func buildRequest(ctx context.Context, step *domain.Step, url string) (*http.Request, error) {
	method := step.HTTPMethod()
	headers := http.Header{}
	headers.Set("Accept", contentTypeJSON)

	var bodyReader io.Reader
	if hasRequestBody(method) {
		switch step.Body.Kind() {
		case jsonv.KindObject, jsonv.KindArray:
			raw, err := step.Body.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("serialize body: %w", err)
			}
			bodyReader = bytes.NewReader(raw)
			headers.Set("Content-Type", contentTypeJSON)
		case jsonv.KindString:
			s, _ := step.Body.AsString()
			bodyReader = strings.NewReader(s)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range headers {
		req.Header[key] = value
	}
	for key, value := range step.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

func hasRequestBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// httpError строит значение для ответа с кодом не из 2xx.
func httpError(code int, body []byte, isJSON bool) jsonv.Value {
	obj := jsonv.NewObject()
	obj.Set(KeyFetchError, jsonv.String(statusMessage(code)))

	if isJSON {
		if parsed, err := jsonv.Parse(body); err == nil {
			obj.Set(KeyHTTPBody, parsed)
			return jsonv.Obj(obj)
		}
		// Тело не декодируется: отдаём как текст
	}

	obj.Set(KeyHTTPText, jsonv.String(string(body)))
	return jsonv.Obj(obj)
}

// statusMessage возвращает "HTTP <code> <text>".
func statusMessage(code int) string {
	msg := "HTTP " + strconv.Itoa(code)
	if text := http.StatusText(code); text != "" {
		msg += " " + text
	}
	return msg
}

func fetchError(msg string) jsonv.Value {
	obj := jsonv.NewObject()
	obj.Set(KeyFetchError, jsonv.String(msg))
	return jsonv.Obj(obj)
}

// IsFetchError проверяет, является ли ответ значением ошибки.
func IsFetchError(v jsonv.Value) bool {
	obj, ok := v.AsObject()
	if !ok {
		return false
	}
	return obj.Has(KeyFetchError)
}

// SleepContext ждёт d или отмены ctx.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
