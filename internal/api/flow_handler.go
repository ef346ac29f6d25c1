package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/domain"
	"github.com/shaiso/botflow/internal/flow"
)

// ListFlows возвращает flows бота.
// GET /api/v1/flows?bot_id=...
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	botID, err := uuid.Parse(r.URL.Query().Get("bot_id"))
	if err != nil {
		BadRequest(w, "bot_id query parameter is required")
		return
	}

	limit, offset := parsePagination(r)

	flows, err := h.flowRepo.List(r.Context(), botID, limit, offset)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]FlowResponse, len(flows))
	for i, f := range flows {
		result[i] = FlowFromDomain(f)
	}

	List(w, result, len(result))
}

// CreateFlow создаёт новый flow.
// POST /api/v1/flows
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var req CreateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if req.BotID == uuid.Nil {
		BadRequest(w, "bot_id is required")
		return
	}

	if details := validateStructure(req.Structure); details != nil {
		ValidationFailed(w, "flow structure is invalid", details)
		return
	}

	now := time.Now().UTC()
	f := &domain.Flow{
		ID:          uuid.New(),
		BotID:       req.BotID,
		Name:        req.Name,
		Description: req.Description,
		Structure:   req.Structure,
		IsActive:    req.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.flowRepo.Create(r.Context(), f); err != nil {
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Created(w, FlowFromDomain(*f))
}

// GetFlow возвращает flow по ID.
// GET /api/v1/flows/{id}
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	f, err := h.flowRepo.GetFlow(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	Success(w, FlowFromDomain(*f))
}

// UpdateFlow обновляет flow.
// PUT /api/v1/flows/{id}
//
// Структура заменяется целиком; executions в полёте продолжают со
// своего достигнутого индекса уже по новой структуре.
func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	var req UpdateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	f, err := h.flowRepo.GetFlow(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	if req.Structure != nil {
		if details := validateStructure(*req.Structure); details != nil {
			ValidationFailed(w, "flow structure is invalid", details)
			return
		}
		f.Structure = *req.Structure
	}
	if req.Name != nil {
		f.Name = *req.Name
	}
	if req.Description != nil {
		f.Description = *req.Description
	}
	if req.IsActive != nil {
		f.IsActive = *req.IsActive
	}
	f.UpdatedAt = time.Now().UTC()

	if err := h.flowRepo.Update(r.Context(), f); err != nil {
		if HandleRepoError(w, h.logger, err, "flow not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Success(w, FlowFromDomain(*f))
}

// DeleteFlow удаляет flow.
// DELETE /api/v1/flows/{id}
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	if err := h.flowRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "flow not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}

// ValidateFlow проверяет структуру без сохранения.
// POST /api/v1/flows/{id}/validate
func (h *Handler) ValidateFlow(w http.ResponseWriter, r *http.Request) {
	var req ValidateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	details := validateStructure(req.Structure)
	Success(w, ValidateFlowResponse{
		Valid:  details == nil,
		Errors: details,
	})
}

// validateStructure возвращает список нарушений или nil.
func validateStructure(structure domain.FlowStructure) []string {
	errs := flow.Validate(structure)
	if len(errs) == 0 {
		return nil
	}

	details := make([]string, len(errs))
	for i, e := range errs {
		details[i] = e.Error()
	}
	return details
}
