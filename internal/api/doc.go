// Package api реализует HTTP API сервиса.
//
// Структура:
//   - handler.go    — Handler с зависимостями
//   - routes.go     — регистрация маршрутов
//   - dto.go        — request/response структуры
//   - response.go   — helpers для JSON ответов и ошибок
//   - middleware.go — logging, recovery
//
// Обработчики по ресурсам:
//   - flow_handler.go      — CRUD flows с валидацией структуры
//   - execution_handler.go — запуск, просмотр, отмена executions,
//     приём входящих сообщений
//   - trigger_handler.go   — CRUD триггеров, журнал срабатываний,
//     отправка событий
//   - contact_handler.go   — контакты и их атрибуты
package api
