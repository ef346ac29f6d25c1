package domain

import (
	"time"

	"github.com/google/uuid"
)

// Trigger — правило автоматического запуска flow.
//
// Тип определяет, какая группа полей значима: keyword-триггеры читают
// Keywords/MatchType/CaseSensitive, event-триггеры — EventType и
// EventConditions, schedule-триггеры — Schedule*/Timezone/NextTriggerAt.
type Trigger struct {
	// ID — уникальный идентификатор триггера.
	ID uuid.UUID `json:"id"`

	// BotID — бот, которому принадлежит триггер.
	BotID uuid.UUID `json:"bot_id"`

	// FlowID — flow, запускаемый при срабатывании.
	FlowID uuid.UUID `json:"flow_id"`

	// Name — имя триггера.
	Name string `json:"name"`

	// Type — тип триггера.
	Type TriggerType `json:"type"`

	// IsActive — неактивные триггеры не участвуют в матчинге.
	IsActive bool `json:"is_active"`

	// Priority — порядок проверки keyword-триггеров: больший приоритет
	// проверяется раньше, побеждает первое совпадение.
	Priority int `json:"priority"`

	// Keywords — ключевые слова (keyword).
	Keywords []string `json:"keywords,omitempty"`

	// MatchType — способ сопоставления (keyword).
	MatchType MatchType `json:"match_type,omitempty"`

	// CaseSensitive — учитывать регистр при сопоставлении (keyword).
	CaseSensitive bool `json:"case_sensitive"`

	// EventType — тип события (event).
	EventType string `json:"event_type,omitempty"`

	// EventConditions — условия над данными события, все должны
	// выполниться (event).
	EventConditions map[string]any `json:"event_conditions,omitempty"`

	// ScheduleType — тип расписания (schedule).
	ScheduleType ScheduleType `json:"schedule_type,omitempty"`

	// ScheduleTime — параметр расписания в формате, зависящем от
	// ScheduleType (schedule).
	ScheduleTime string `json:"schedule_time,omitempty"`

	// Timezone — IANA-зона, в которой интерпретируется ScheduleTime.
	// Пустая строка означает UTC (schedule).
	Timezone string `json:"timezone,omitempty"`

	// ContactFilterType — область контактов при срабатывании (event/schedule).
	ContactFilterType ContactFilter `json:"contact_filter_type,omitempty"`

	// LastTriggeredAt — время последнего срабатывания.
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`

	// NextTriggerAt — время следующего срабатывания в UTC (schedule).
	// nil означает "не запланирован" (once в прошлом, исчерпан).
	NextTriggerAt *time.Time `json:"next_trigger_at,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDue возвращает true, если schedule-триггеру пора сработать.
func (t *Trigger) IsDue(now time.Time) bool {
	return t.IsActive &&
		t.Type == TriggerSchedule &&
		t.NextTriggerAt != nil &&
		!t.NextTriggerAt.After(now)
}

// TriggerLog — append-only запись о срабатывании триггера.
type TriggerLog struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// TriggerID — сработавший триггер.
	TriggerID uuid.UUID `json:"trigger_id"`

	// ContactID — контакт, для которого сработал триггер.
	ContactID uuid.UUID `json:"contact_id"`

	// ExecutionID — запущенный execution, если запуск удался.
	ExecutionID *uuid.UUID `json:"execution_id,omitempty"`

	// MatchedValue — что именно совпало (ключевое слово, тип события,
	// момент расписания).
	MatchedValue string `json:"matched_value,omitempty"`

	// Success — удалось ли запустить flow.
	Success bool `json:"success"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// TriggeredAt — время срабатывания.
	TriggeredAt time.Time `json:"triggered_at"`
}
