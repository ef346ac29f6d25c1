package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Flows
	mux.Handle("GET /api/v1/flows", chain(http.HandlerFunc(h.ListFlows)))
	mux.Handle("POST /api/v1/flows", chain(http.HandlerFunc(h.CreateFlow)))
	mux.Handle("GET /api/v1/flows/{id}", chain(http.HandlerFunc(h.GetFlow)))
	mux.Handle("PUT /api/v1/flows/{id}", chain(http.HandlerFunc(h.UpdateFlow)))
	mux.Handle("DELETE /api/v1/flows/{id}", chain(http.HandlerFunc(h.DeleteFlow)))
	mux.Handle("POST /api/v1/flows/{id}/validate", chain(http.HandlerFunc(h.ValidateFlow)))

	// Executions
	mux.Handle("POST /api/v1/flows/{id}/executions", chain(http.HandlerFunc(h.StartExecution)))
	mux.Handle("GET /api/v1/executions/{id}", chain(http.HandlerFunc(h.GetExecution)))
	mux.Handle("GET /api/v1/executions/{id}/logs", chain(http.HandlerFunc(h.ListExecutionLogs)))
	mux.Handle("POST /api/v1/executions/{id}/cancel", chain(http.HandlerFunc(h.CancelExecution)))

	// Входящие сообщения (webhook от мессенджер-шлюза)
	mux.Handle("POST /api/v1/messages/inbound", chain(http.HandlerFunc(h.InboundMessage)))

	// Triggers
	mux.Handle("GET /api/v1/triggers", chain(http.HandlerFunc(h.ListTriggers)))
	mux.Handle("POST /api/v1/triggers", chain(http.HandlerFunc(h.CreateTrigger)))
	mux.Handle("GET /api/v1/triggers/{id}", chain(http.HandlerFunc(h.GetTrigger)))
	mux.Handle("PUT /api/v1/triggers/{id}", chain(http.HandlerFunc(h.UpdateTrigger)))
	mux.Handle("DELETE /api/v1/triggers/{id}", chain(http.HandlerFunc(h.DeleteTrigger)))
	mux.Handle("GET /api/v1/triggers/{id}/logs", chain(http.HandlerFunc(h.ListTriggerLogs)))
	mux.Handle("POST /api/v1/triggers/{id}/test", chain(http.HandlerFunc(h.TestTrigger)))

	// Events
	mux.Handle("POST /api/v1/events", chain(http.HandlerFunc(h.FireEvent)))

	// Contacts
	mux.Handle("GET /api/v1/contacts", chain(http.HandlerFunc(h.ListContacts)))
	mux.Handle("GET /api/v1/contacts/{id}", chain(http.HandlerFunc(h.GetContact)))
	mux.Handle("GET /api/v1/contacts/{id}/attributes", chain(http.HandlerFunc(h.GetContactAttributes)))
	mux.Handle("PUT /api/v1/contacts/{id}/attributes/{key}", chain(http.HandlerFunc(h.SetContactAttribute)))
	mux.Handle("GET /api/v1/contacts/{id}/executions", chain(http.HandlerFunc(h.ListContactExecutions)))
}
