// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus-счётчики доменной активности
//
// Все сервисы используют единый формат логирования и экспортируют
// метрики на /metrics endpoint; счётчики, специфичные для одного
// бинарника, объявляются в его main.
package telemetry
