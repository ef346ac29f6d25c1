package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/domain"
	"github.com/shaiso/botflow/internal/trigger"
)

// ListTriggers возвращает триггеры бота.
// GET /api/v1/triggers?bot_id=...
func (h *Handler) ListTriggers(w http.ResponseWriter, r *http.Request) {
	botID, err := uuid.Parse(r.URL.Query().Get("bot_id"))
	if err != nil {
		BadRequest(w, "bot_id query parameter is required")
		return
	}

	limit, offset := parsePagination(r)

	triggers, err := h.triggerRepo.List(r.Context(), botID, limit, offset)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TriggerResponse, len(triggers))
	for i := range triggers {
		result[i] = TriggerFromDomain(&triggers[i])
	}

	List(w, result, len(result))
}

// CreateTrigger создаёт новый триггер.
// POST /api/v1/triggers
func (h *Handler) CreateTrigger(w http.ResponseWriter, r *http.Request) {
	var req CreateTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if req.BotID == uuid.Nil || req.FlowID == uuid.Nil {
		BadRequest(w, "bot_id and flow_id are required")
		return
	}

	_, err := h.flowRepo.GetFlow(r.Context(), req.FlowID)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	now := time.Now().UTC()
	t := &domain.Trigger{
		ID:                uuid.New(),
		BotID:             req.BotID,
		FlowID:            req.FlowID,
		Name:              req.Name,
		Type:              domain.TriggerType(req.Type),
		IsActive:          req.IsActive,
		Priority:          req.Priority,
		Keywords:          req.Keywords,
		MatchType:         domain.MatchType(req.MatchType),
		CaseSensitive:     req.CaseSensitive,
		EventType:         req.EventType,
		EventConditions:   req.EventConditions,
		ScheduleType:      domain.ScheduleType(req.ScheduleType),
		ScheduleTime:      req.ScheduleTime,
		Timezone:          req.Timezone,
		ContactFilterType: domain.ContactFilter(req.ContactFilterType),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if msg := h.prepareTrigger(t, now); msg != "" {
		BadRequest(w, msg)
		return
	}

	if err := h.triggerRepo.Create(r.Context(), t); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, TriggerFromDomain(t))
}

// GetTrigger возвращает триггер по ID.
// GET /api/v1/triggers/{id}
func (h *Handler) GetTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid trigger id")
		return
	}

	t, err := h.triggerRepo.GetTrigger(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "trigger not found") {
		return
	}

	Success(w, TriggerFromDomain(t))
}

// UpdateTrigger обновляет триггер.
// PUT /api/v1/triggers/{id}
func (h *Handler) UpdateTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid trigger id")
		return
	}

	var req UpdateTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	t, err := h.triggerRepo.GetTrigger(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "trigger not found") {
		return
	}

	scheduleChanged := applyTriggerUpdate(t, &req)
	t.UpdatedAt = time.Now().UTC()

	if scheduleChanged && t.Type == domain.TriggerSchedule {
		if msg := h.prepareTrigger(t, t.UpdatedAt); msg != "" {
			BadRequest(w, msg)
			return
		}
	}

	if err := h.triggerRepo.UpdateTrigger(r.Context(), t); err != nil {
		if HandleRepoError(w, h.logger, err, "trigger not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Success(w, TriggerFromDomain(t))
}

// DeleteTrigger удаляет триггер.
// DELETE /api/v1/triggers/{id}
func (h *Handler) DeleteTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid trigger id")
		return
	}

	if err := h.triggerRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "trigger not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}

// ListTriggerLogs возвращает журнал срабатываний триггера.
// GET /api/v1/triggers/{id}/logs
func (h *Handler) ListTriggerLogs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid trigger id")
		return
	}

	_, err = h.triggerRepo.GetTrigger(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "trigger not found") {
		return
	}

	limit, offset := parsePagination(r)

	logs, err := h.triggerRepo.ListLogs(r.Context(), id, limit, offset)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TriggerLogResponse, len(logs))
	for i, l := range logs {
		result[i] = TriggerLogFromDomain(l)
	}

	List(w, result, len(result))
}

// TestTrigger прогоняет триггер по образцу сообщения или события,
// не запуская flow.
// POST /api/v1/triggers/{id}/test
func (h *Handler) TestTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid trigger id")
		return
	}

	t, err := h.triggerRepo.GetTrigger(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "trigger not found") {
		return
	}

	var req TestTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	matcher := trigger.NewMatcher(h.logger)

	switch t.Type {
	case domain.TriggerKeyword:
		if req.Message == "" {
			BadRequest(w, "message is required to test a keyword trigger")
			return
		}
		_, keyword, ok := matcher.MatchKeyword([]*domain.Trigger{t}, req.Message)
		Success(w, TestTriggerResponse{Matched: ok, MatchedValue: keyword})

	case domain.TriggerEvent:
		if req.EventType == "" {
			BadRequest(w, "event_type is required to test an event trigger")
			return
		}
		matched := matcher.MatchEvent(t, req.EventType, req.EventData)
		resp := TestTriggerResponse{Matched: matched}
		if matched {
			resp.MatchedValue = req.EventType
		}
		Success(w, resp)

	default:
		InvalidState(w, "schedule triggers cannot be tested against a sample")
	}
}

// FireEvent отправляет событие в систему event-триггеров.
// POST /api/v1/events
func (h *Handler) FireEvent(w http.ResponseWriter, r *http.Request) {
	var req FireEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.BotID == uuid.Nil {
		BadRequest(w, "bot_id is required")
		return
	}
	if req.EventType == "" {
		BadRequest(w, "event_type is required")
		return
	}

	launched, err := h.dispatcher.FireEvent(r.Context(), req.BotID, req.EventType, req.ContactID, req.EventData)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, FireEventResponse{Launched: launched})
}

// prepareTrigger валидирует типоспецифичные поля и для schedule
// вычисляет первое срабатывание. Возвращает текст ошибки или "".
func (h *Handler) prepareTrigger(t *domain.Trigger, now time.Time) string {
	switch t.Type {
	case domain.TriggerKeyword:
		if len(t.Keywords) == 0 {
			return "keywords are required for keyword trigger"
		}
		if t.MatchType == "" {
			t.MatchType = domain.MatchExact
		}

	case domain.TriggerEvent:
		if t.EventType == "" {
			return "event_type is required for event trigger"
		}

	case domain.TriggerSchedule:
		err := trigger.ValidateScheduleConfig(t.ScheduleType, t.ScheduleTime, t.Timezone)
		if err != nil {
			return err.Error()
		}
		next, err := trigger.NextFireTime(t, now)
		if err != nil {
			if errors.Is(err, trigger.ErrScheduleExhausted) {
				return "schedule fire time is in the past"
			}
			return err.Error()
		}
		t.NextTriggerAt = &next
		if t.ContactFilterType == "" {
			t.ContactFilterType = domain.ContactFilterAll
		}

	default:
		return "unknown trigger type"
	}

	return ""
}

// applyTriggerUpdate накладывает частичное обновление и сообщает,
// изменились ли поля расписания.
func applyTriggerUpdate(t *domain.Trigger, req *UpdateTriggerRequest) bool {
	scheduleChanged := false

	if req.FlowID != nil {
		t.FlowID = *req.FlowID
	}
	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.Keywords != nil {
		t.Keywords = *req.Keywords
	}
	if req.MatchType != nil {
		t.MatchType = domain.MatchType(*req.MatchType)
	}
	if req.CaseSensitive != nil {
		t.CaseSensitive = *req.CaseSensitive
	}
	if req.EventType != nil {
		t.EventType = *req.EventType
	}
	if req.EventConditions != nil {
		t.EventConditions = *req.EventConditions
	}
	if req.ScheduleType != nil {
		t.ScheduleType = domain.ScheduleType(*req.ScheduleType)
		scheduleChanged = true
	}
	if req.ScheduleTime != nil {
		t.ScheduleTime = *req.ScheduleTime
		scheduleChanged = true
	}
	if req.Timezone != nil {
		t.Timezone = *req.Timezone
		scheduleChanged = true
	}
	if req.ContactFilterType != nil {
		t.ContactFilterType = domain.ContactFilter(*req.ContactFilterType)
	}

	return scheduleChanged
}
