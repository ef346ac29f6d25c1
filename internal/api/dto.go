package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/domain"
)

// Flow DTOs

// CreateFlowRequest — запрос на создание flow.
type CreateFlowRequest struct {
	BotID       uuid.UUID            `json:"bot_id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Structure   domain.FlowStructure `json:"structure"`
	IsActive    bool                 `json:"is_active"`
}

// UpdateFlowRequest — запрос на обновление flow.
type UpdateFlowRequest struct {
	Name        *string               `json:"name,omitempty"`
	Description *string               `json:"description,omitempty"`
	Structure   *domain.FlowStructure `json:"structure,omitempty"`
	IsActive    *bool                 `json:"is_active,omitempty"`
}

// ValidateFlowRequest — запрос на валидацию структуры без сохранения.
type ValidateFlowRequest struct {
	Structure domain.FlowStructure `json:"structure"`
}

// ValidateFlowResponse — результат валидации структуры.
type ValidateFlowResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// FlowResponse — ответ с flow.
type FlowResponse struct {
	ID          uuid.UUID            `json:"id"`
	BotID       uuid.UUID            `json:"bot_id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Structure   domain.FlowStructure `json:"structure"`
	IsActive    bool                 `json:"is_active"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// FlowFromDomain конвертирует domain.Flow в FlowResponse.
func FlowFromDomain(f domain.Flow) FlowResponse {
	return FlowResponse{
		ID:          f.ID,
		BotID:       f.BotID,
		Name:        f.Name,
		Description: f.Description,
		Structure:   f.Structure,
		IsActive:    f.IsActive,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Execution DTOs

// StartExecutionRequest — запрос на запуск flow для контакта.
type StartExecutionRequest struct {
	ContactID    uuid.UUID      `json:"contact_id"`
	InitialState map[string]any `json:"initial_state,omitempty"`
}

// InboundMessageRequest — входящее сообщение от контакта.
type InboundMessageRequest struct {
	BotID       uuid.UUID `json:"bot_id"`
	Phone       string    `json:"phone"`
	Message     string    `json:"message"`
	MessageType string    `json:"message_type,omitempty"`
}

// ExecutionResponse — ответ с execution.
type ExecutionResponse struct {
	ID               uuid.UUID      `json:"id"`
	FlowID           uuid.UUID      `json:"flow_id"`
	ContactID        uuid.UUID      `json:"contact_id"`
	BotID            uuid.UUID      `json:"bot_id"`
	CurrentNodeIndex int            `json:"current_node_index"`
	State            map[string]any `json:"state,omitempty"`
	Status           string         `json:"status"`
	ScheduledTaskID  string         `json:"scheduled_task_id,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	LastExecutedAt   *time.Time     `json:"last_executed_at,omitempty"`
}

// ExecutionFromDomain конвертирует domain.FlowExecution в ExecutionResponse.
func ExecutionFromDomain(e domain.FlowExecution) ExecutionResponse {
	return ExecutionResponse{
		ID:               e.ID,
		FlowID:           e.FlowID,
		ContactID:        e.ContactID,
		BotID:            e.BotID,
		CurrentNodeIndex: e.CurrentNodeIndex,
		State:            e.State,
		Status:           string(e.Status),
		ScheduledTaskID:  e.ScheduledTaskID,
		ErrorMessage:     e.ErrorMessage,
		StartedAt:        e.StartedAt,
		CompletedAt:      e.CompletedAt,
		LastExecutedAt:   e.LastExecutedAt,
	}
}

// ExecutionLogResponse — запись журнала выполнения узла.
type ExecutionLogResponse struct {
	ID         uuid.UUID      `json:"id"`
	NodeIndex  int            `json:"node_index"`
	NodeType   string         `json:"node_type"`
	Action     string         `json:"action"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	ExecutedAt time.Time      `json:"executed_at"`
}

// ExecutionLogFromDomain конвертирует domain.ExecutionLog.
func ExecutionLogFromDomain(l domain.ExecutionLog) ExecutionLogResponse {
	return ExecutionLogResponse{
		ID:         l.ID,
		NodeIndex:  l.NodeIndex,
		NodeType:   l.NodeType,
		Action:     string(l.Action),
		Result:     l.Result,
		Error:      l.Error,
		ExecutedAt: l.ExecutedAt,
	}
}

// Trigger DTOs

// CreateTriggerRequest — запрос на создание триггера.
type CreateTriggerRequest struct {
	BotID             uuid.UUID      `json:"bot_id"`
	FlowID            uuid.UUID      `json:"flow_id"`
	Name              string         `json:"name"`
	Type              string         `json:"type"`
	IsActive          bool           `json:"is_active"`
	Priority          int            `json:"priority,omitempty"`
	Keywords          []string       `json:"keywords,omitempty"`
	MatchType         string         `json:"match_type,omitempty"`
	CaseSensitive     bool           `json:"case_sensitive,omitempty"`
	EventType         string         `json:"event_type,omitempty"`
	EventConditions   map[string]any `json:"event_conditions,omitempty"`
	ScheduleType      string         `json:"schedule_type,omitempty"`
	ScheduleTime      string         `json:"schedule_time,omitempty"`
	Timezone          string         `json:"timezone,omitempty"`
	ContactFilterType string         `json:"contact_filter_type,omitempty"`
}

// UpdateTriggerRequest — запрос на обновление триггера.
type UpdateTriggerRequest struct {
	FlowID            *uuid.UUID      `json:"flow_id,omitempty"`
	Name              *string         `json:"name,omitempty"`
	IsActive          *bool           `json:"is_active,omitempty"`
	Priority          *int            `json:"priority,omitempty"`
	Keywords          *[]string       `json:"keywords,omitempty"`
	MatchType         *string         `json:"match_type,omitempty"`
	CaseSensitive     *bool           `json:"case_sensitive,omitempty"`
	EventType         *string         `json:"event_type,omitempty"`
	EventConditions   *map[string]any `json:"event_conditions,omitempty"`
	ScheduleType      *string         `json:"schedule_type,omitempty"`
	ScheduleTime      *string         `json:"schedule_time,omitempty"`
	Timezone          *string         `json:"timezone,omitempty"`
	ContactFilterType *string         `json:"contact_filter_type,omitempty"`
}

// TriggerResponse — ответ с триггером.
type TriggerResponse struct {
	ID                uuid.UUID      `json:"id"`
	BotID             uuid.UUID      `json:"bot_id"`
	FlowID            uuid.UUID      `json:"flow_id"`
	Name              string         `json:"name"`
	Type              string         `json:"type"`
	IsActive          bool           `json:"is_active"`
	Priority          int            `json:"priority"`
	Keywords          []string       `json:"keywords,omitempty"`
	MatchType         string         `json:"match_type,omitempty"`
	CaseSensitive     bool           `json:"case_sensitive"`
	EventType         string         `json:"event_type,omitempty"`
	EventConditions   map[string]any `json:"event_conditions,omitempty"`
	ScheduleType      string         `json:"schedule_type,omitempty"`
	ScheduleTime      string         `json:"schedule_time,omitempty"`
	Timezone          string         `json:"timezone,omitempty"`
	ContactFilterType string         `json:"contact_filter_type,omitempty"`
	LastTriggeredAt   *time.Time     `json:"last_triggered_at,omitempty"`
	NextTriggerAt     *time.Time     `json:"next_trigger_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// TriggerFromDomain конвертирует domain.Trigger в TriggerResponse.
func TriggerFromDomain(t *domain.Trigger) TriggerResponse {
	return TriggerResponse{
		ID:                t.ID,
		BotID:             t.BotID,
		FlowID:            t.FlowID,
		Name:              t.Name,
		Type:              string(t.Type),
		IsActive:          t.IsActive,
		Priority:          t.Priority,
		Keywords:          t.Keywords,
		MatchType:         string(t.MatchType),
		CaseSensitive:     t.CaseSensitive,
		EventType:         t.EventType,
		EventConditions:   t.EventConditions,
		ScheduleType:      string(t.ScheduleType),
		ScheduleTime:      t.ScheduleTime,
		Timezone:          t.Timezone,
		ContactFilterType: string(t.ContactFilterType),
		LastTriggeredAt:   t.LastTriggeredAt,
		NextTriggerAt:     t.NextTriggerAt,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

// TriggerLogResponse — запись журнала срабатываний.
type TriggerLogResponse struct {
	ID           uuid.UUID  `json:"id"`
	TriggerID    uuid.UUID  `json:"trigger_id"`
	ContactID    uuid.UUID  `json:"contact_id"`
	ExecutionID  *uuid.UUID `json:"execution_id,omitempty"`
	MatchedValue string     `json:"matched_value,omitempty"`
	Success      bool       `json:"success"`
	Error        string     `json:"error,omitempty"`
	TriggeredAt  time.Time  `json:"triggered_at"`
}

// TriggerLogFromDomain конвертирует domain.TriggerLog.
func TriggerLogFromDomain(l domain.TriggerLog) TriggerLogResponse {
	return TriggerLogResponse{
		ID:           l.ID,
		TriggerID:    l.TriggerID,
		ContactID:    l.ContactID,
		ExecutionID:  l.ExecutionID,
		MatchedValue: l.MatchedValue,
		Success:      l.Success,
		Error:        l.Error,
		TriggeredAt:  l.TriggeredAt,
	}
}

// Event DTOs

// FireEventRequest — запрос на отправку события в систему триггеров.
type FireEventRequest struct {
	BotID     uuid.UUID      `json:"bot_id"`
	EventType string         `json:"event_type"`
	ContactID *uuid.UUID     `json:"contact_id,omitempty"`
	EventData map[string]any `json:"event_data,omitempty"`
}

// FireEventResponse — результат обработки события.
type FireEventResponse struct {
	Launched int `json:"launched"`
}

// TestTriggerRequest — образец сообщения или события для проверки
// триггера без запуска flow.
type TestTriggerRequest struct {
	Message   string         `json:"message,omitempty"`
	EventType string         `json:"event_type,omitempty"`
	EventData map[string]any `json:"event_data,omitempty"`
}

// TestTriggerResponse — результат проверки триггера.
type TestTriggerResponse struct {
	Matched      bool   `json:"matched"`
	MatchedValue string `json:"matched_value,omitempty"`
}

// Contact DTOs

// ContactResponse — ответ с контактом.
type ContactResponse struct {
	ID          uuid.UUID      `json:"id"`
	BotID       uuid.UUID      `json:"bot_id"`
	PhoneNumber string         `json:"phone_number"`
	FirstName   string         `json:"first_name,omitempty"`
	LastName    string         `json:"last_name,omitempty"`
	Email       string         `json:"email,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ContactFromDomain конвертирует domain.Contact в ContactResponse.
func ContactFromDomain(c *domain.Contact) ContactResponse {
	return ContactResponse{
		ID:          c.ID,
		BotID:       c.BotID,
		PhoneNumber: c.PhoneNumber,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		Metadata:    c.Metadata,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// SetAttributeRequest — запрос на запись атрибута контакта.
type SetAttributeRequest struct {
	Value     string `json:"value"`
	ValueType string `json:"value_type,omitempty"`
}

// --- Helpers ---

// parsePagination извлекает limit/offset из query, с безопасными
// значениями по умолчанию.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
