// Package gateway — HTTP-клиент мессенджер-шлюза.
//
// Шлюз принимает исходящие сообщения (текст, шаблон, медиа,
// интерактив) по протоколу, совместимому с WhatsApp Cloud API:
// POST {base_url}/messages с Bearer-авторизацией.
//
// Client реализует интерфейс engine.Messenger.
package gateway
