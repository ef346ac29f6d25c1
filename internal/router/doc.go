// Package router маршрутизирует входящие сообщения: ответ в активный
// execution контакта либо запуск нового flow по keyword-триггеру.
package router
