// Package orchestrator выполняет run: группирует шаги и запускает группы
// через ограниченный пул воркеров.
//
// Orchestrator отвечает за:
//   - Разбиение шагов на группы в порядке первого появления (Partition)
//   - Параллельное выполнение групп, не больше Concurrency одновременно
//   - Последовательное выполнение шагов внутри группы
//   - Разрешение шаблонов перед каждым шагом
//   - Запись ответов в ExecutionContext (collect, extract)
//   - Сборку OutputDocument (Execute)
//
// Порядок между группами не гарантируется: шаг группы B, ссылающийся
// на шаг группы A, увидит его ответ только если A успела его записать.
// При Concurrency == 1 группы выполняются строго по порядку.
package orchestrator
