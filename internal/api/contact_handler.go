package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/domain"
)

// ListContacts возвращает контакты бота.
// GET /api/v1/contacts?bot_id=...
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	botID, err := uuid.Parse(r.URL.Query().Get("bot_id"))
	if err != nil {
		BadRequest(w, "bot_id query parameter is required")
		return
	}

	contacts, err := h.contactRepo.ListContacts(r.Context(), botID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ContactResponse, len(contacts))
	for i, c := range contacts {
		result[i] = ContactFromDomain(c)
	}

	List(w, result, len(result))
}

// GetContact возвращает контакт по ID.
// GET /api/v1/contacts/{id}
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid contact id")
		return
	}

	c, err := h.contactRepo.GetContact(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "contact not found") {
		return
	}

	Success(w, ContactFromDomain(c))
}

// GetContactAttributes возвращает атрибуты контакта.
// GET /api/v1/contacts/{id}/attributes
func (h *Handler) GetContactAttributes(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid contact id")
		return
	}

	_, err = h.contactRepo.GetContact(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "contact not found") {
		return
	}

	attrs, err := h.contactRepo.GetAttributes(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, attrs)
}

// SetContactAttribute записывает атрибут контакта.
// PUT /api/v1/contacts/{id}/attributes/{key}
func (h *Handler) SetContactAttribute(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid contact id")
		return
	}

	key := r.PathValue("key")
	if key == "" {
		BadRequest(w, "attribute key is required")
		return
	}

	var req SetAttributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	valueType := domain.AttributeValueType(req.ValueType)
	if req.ValueType == "" {
		valueType = domain.AttributeString
	}
	if !domain.ValidAttributeValueTypes[valueType] {
		BadRequest(w, "invalid value_type")
		return
	}

	_, err = h.contactRepo.GetContact(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "contact not found") {
		return
	}

	err = h.contactRepo.SetAttribute(r.Context(), id, key, req.Value, valueType)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, map[string]string{"key": key, "value": req.Value})
}

// ListContactExecutions возвращает executions контакта.
// GET /api/v1/contacts/{id}/executions
func (h *Handler) ListContactExecutions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid contact id")
		return
	}

	limit, offset := parsePagination(r)

	executions, err := h.executionRepo.ListByContact(r.Context(), id, limit, offset)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ExecutionResponse, len(executions))
	for i, e := range executions {
		result[i] = ExecutionFromDomain(e)
	}

	List(w, result, len(result))
}
