// Package trigger реализует автоматический запуск flows: сопоставление
// входящих сообщений с keyword-триггерами, диспетчеризацию событий по
// event-триггерам и расписания schedule-триггеров.
//
// Scheduler обходит due-триггеры тиками и публикует запуски в очередь,
// Dispatcher обрабатывает прикладные события синхронно.
package trigger
