// Package delayqueue реализует отложенные задачи возобновления
// executions на Redis sorted set.
//
// Задача кладётся в ZSET со score = unix-время срабатывания (мс).
// Poller периодически забирает созревшие задачи (ZRangeByScore +
// ZRemRangeByScore в одном pipeline) и публикует execution.resume
// в RabbitMQ.
//
// Отмена задачи удаляет её member из ZSET; отмена уже выполненной
// задачи — no-op.
package delayqueue
