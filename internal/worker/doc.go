// Package worker выполняет runs из очереди.
//
// # Обзор
//
// Worker — stateless компонент, который:
//
//   - Получает run.pending из очереди runs.pending (event-driven)
//   - Периодически проверяет PENDING runs в БД (polling fallback, только с RunStore)
//   - Выполняет run через orchestrator.Execute
//   - Сохраняет итоговый документ и статус
//   - Публикует run.completed
//
// Workers масштабируются горизонтально: несколько экземпляров
// потребляют из одной очереди runs.pending.
//
//	w := worker.New(worker.Config{
//	    Conn:      mqConn,
//	    Publisher: publisher,
//	    Runs:      runRepo, // опционально
//	    Logger:    logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Обработка run
//
//  1. Загрузка run из RunStore (если run нет — создаётся из payload)
//  2. Run не в PENDING — сообщение подтверждается без выполнения
//  3. Перевод в RUNNING
//  4. Execute: нормализация, группы, сборка документа
//  5. Успех → SUCCEEDED, документ в Output
//  6. Вход нельзя привести к шагам → FAILED (без retry)
//  7. Публикация run.completed
//
// Сбои отдельных HTTP-запросов не делают run FAILED: они попадают
// в документ как fetchError.
//
// # Ошибки
//
//   - payload не парсится → сообщение уходит в DLQ
//   - ошибка RunStore → сообщение возвращается в очередь один раз,
//     повторная неудача уводит его в DLQ (run остаётся PENDING для polling)
//   - ошибка публикации run.completed → только лог, run уже сохранён
package worker
