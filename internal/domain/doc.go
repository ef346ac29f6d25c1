// Package domain содержит основные доменные типы Botflow:
// flows, nodes, executions, contacts и triggers.
//
// Типы не содержат бизнес-логики выполнения — только данные
// и небольшие helpers для переходов статусов.
package domain
