// Package steps выполняет HTTP-вызов одного шага.
//
// # HTTPInvoker
//
// HTTPInvoker получает шаг с уже разрешёнными шаблонами и параметры
// попытки:
//
//	inv := steps.NewHTTPInvoker(steps.Config{Logger: logger})
//	resp := inv.Invoke(ctx, &step, steps.DefaultInvokeOptions().For(&step))
//
// Результат всегда jsonv.Value, ошибки не возвращаются. Сбой запроса
// превращается в значение:
//
//	{"fetchError": "HTTP 404 Not Found", "httpBody": {...}}
//	{"fetchError": "HTTP 502 Bad Gateway", "httpText": "..."}
//	{"fetchError": "Get \"http://...\": context deadline exceeded"}
//
// # Retry
//
// Попытки нумеруются от 0 до Retries включительно. После неудачной
// не последней попытки выполняется пауза Backoff, затем Backoff удваивается
// (без jitter). Повторяются:
//   - ошибки сети и таймауты попытки
//   - успешный ответ с JSON content-type, который не декодируется
//
// HTTP-ответ с кодом не из 2xx не повторяется.
//
// # Файлы пакета
//
//   - http.go   — HTTPInvoker, InvokeOptions, построение запроса и разбор ответа
//   - errors.go — ошибки вызова
package steps
