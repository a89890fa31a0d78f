// Package engine содержит чистую логику обработки шагов.
//
// Включает:
//   - parser.go   — нормализация входа (массив или объект) в список шагов
//   - context.go  — ExecutionContext, потокобезопасное хранилище ответов шагов
//   - template.go — разрешение ссылок {{steps.<id>.<path>}}
//   - output.go   — сборка OutputDocument по outputAs
//
// Engine не выполняет сетевых вызовов: этим занимаются steps
// (HTTP-вызов) и orchestrator (планирование групп).
package engine
