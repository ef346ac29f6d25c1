// Package cli реализует инструмент командной строки botflow.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с botflow API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления flows, triggers, executions и
// контактами.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для botflow API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	flows, err := client.ListFlows(botID)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: botflow flow list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - flow: list, create, show, update, delete, validate
//   - execution: start, show, logs, cancel
//   - trigger: list, create, show, update, delete, logs, enable, disable
//   - event: fire
//   - contact: list, show, attrs, set-attr
//
// Каждая группа создаётся через фабричную функцию (NewFlowCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
