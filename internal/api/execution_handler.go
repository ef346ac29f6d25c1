package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/mq"
)

// StartExecution ставит запуск flow для контакта в очередь.
// POST /api/v1/flows/{id}/executions
//
// Запуск асинхронный: команда уходит в очередь executions.start,
// а фактический execution создаёт engine-сервис.
func (h *Handler) StartExecution(w http.ResponseWriter, r *http.Request) {
	flowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	var req StartExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.ContactID == uuid.Nil {
		BadRequest(w, "contact_id is required")
		return
	}

	f, err := h.flowRepo.GetFlow(r.Context(), flowID)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}
	if !f.IsActive {
		InvalidState(w, "flow is not active")
		return
	}

	_, err = h.contactRepo.GetContact(r.Context(), req.ContactID)
	if HandleRepoError(w, h.logger, err, "contact not found") {
		return
	}

	err = h.publisher.PublishExecutionStart(r.Context(), flowID, req.ContactID, req.InitialState)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Accepted(w, map[string]any{
		"flow_id":    flowID,
		"contact_id": req.ContactID,
		"queued":     true,
	})
}

// GetExecution возвращает execution по ID.
// GET /api/v1/executions/{id}
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	e, err := h.executionRepo.GetExecution(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	Success(w, ExecutionFromDomain(*e))
}

// ListExecutionLogs возвращает журнал выполнения узлов.
// GET /api/v1/executions/{id}/logs
func (h *Handler) ListExecutionLogs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	_, err = h.executionRepo.GetExecution(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	limit, offset := parsePagination(r)

	logs, err := h.executionRepo.ListLogs(r.Context(), id, limit, offset)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ExecutionLogResponse, len(logs))
	for i, l := range logs {
		result[i] = ExecutionLogFromDomain(l)
	}

	List(w, result, len(result))
}

// CancelExecution отменяет активный execution.
// POST /api/v1/executions/{id}/cancel
func (h *Handler) CancelExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	e, err := h.executionRepo.GetExecution(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	if e.IsFinished() {
		InvalidState(w, "execution is already finished")
		return
	}

	if e.ScheduledTaskID != "" {
		if err := h.tasks.CancelTask(r.Context(), e.ScheduledTaskID); err != nil {
			h.logger.Warn("cancel scheduled task failed",
				"execution_id", e.ID,
				"task_id", e.ScheduledTaskID,
				"error", err,
			)
		}
	}

	e.MarkFailed("cancelled")
	if err := h.executionRepo.UpdateExecution(r.Context(), e); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, ExecutionFromDomain(*e))
}

// InboundMessage принимает входящее сообщение от мессенджер-шлюза и
// ставит его в очередь messages.inbound.
// POST /api/v1/messages/inbound
func (h *Handler) InboundMessage(w http.ResponseWriter, r *http.Request) {
	var req InboundMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.BotID == uuid.Nil {
		BadRequest(w, "bot_id is required")
		return
	}
	if req.Phone == "" {
		BadRequest(w, "phone is required")
		return
	}

	err := h.publisher.PublishInboundMessage(r.Context(), mq.InboundMessagePayload{
		BotID:       req.BotID,
		Phone:       req.Phone,
		Message:     req.Message,
		MessageType: req.MessageType,
	})
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Accepted(w, map[string]any{"queued": true})
}
