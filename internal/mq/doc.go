// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - execution.start  — запуск flow для контакта
//   - execution.resume — отложенное возобновление execution
//   - message.inbound  — входящее сообщение от контакта
//
// Exchanges:
//   - botflow.executions — события executions
//   - botflow.messages   — входящие сообщения
//   - botflow.dlq        — dead letter queue
package mq
