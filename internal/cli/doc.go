// Package cli реализует инструмент командной строки Relay.
//
// # Обзор
//
// Команда run выполняет документ шагов локально, через orchestrator,
// без API и БД. Команды submit, show и list работают с Relay API по HTTP
// и не импортируют internal/api.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Relay API. Инкапсулирует HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	runs, err := client.ListRuns(cli.ListRunsOpts{Status: "FAILED"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения и логи — в stderr.
// Это позволяет использовать pipe: relay run -i steps.json | jq .
//
// ## Commands
//
// Каждая команда создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
//
// Ошибки команд с особым кодом завершения возвращаются как *ExitError:
// 2 — вход не передан, 1 — ошибка чтения или выполнения.
package cli
