// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go     — Handler с DI (executor, хранилище runs, publisher, logger)
//   - routes.go      — регистрация маршрутов
//   - middleware.go  — middleware (request id, logging, recovery)
//   - response.go    — унифицированные JSON-ответы и обработка ошибок
//   - dto.go         — Data Transfer Objects (request/response)
//   - run_handler.go — обработчики для /runs
//
// POST /api/v1/runs выполняет шаги синхронно или ставит их в очередь.
// Чтение истории доступно только при подключённой БД.
package api
