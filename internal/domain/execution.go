package domain

import (
	"time"

	"github.com/google/uuid"
)

// FlowExecution — состояние одного прогона flow для одного контакта.
//
// Создаётся StartFlow, мутируется engine'ом (цикл узлов) и вызовами
// resume / user-input, становится терминальным ровно один раз и
// никогда не переиспользуется.
//
// Инвариант: у контакта может быть не более одного execution в статусе
// running или waiting одновременно.
type FlowExecution struct {
	// ID — уникальный идентификатор execution.
	ID uuid.UUID `json:"id"`

	// FlowID — выполняемый flow.
	FlowID uuid.UUID `json:"flow_id"`

	// ContactID — контакт, для которого выполняется flow.
	ContactID uuid.UUID `json:"contact_id"`

	// BotID — бот, в рамках которого выполняется flow.
	BotID uuid.UUID `json:"bot_id"`

	// CurrentNodeIndex — индекс текущего узла в нормализованной структуре.
	// Валидные значения: [0, len(structure)) — узел; len(structure) —
	// достигнут конец; EndOfFlowIndex — терминальный sentinel.
	CurrentNodeIndex int `json:"current_node_index"`

	// State — свободная переменная среда execution. Мутируется
	// исполнителями узлов (condition lookups, set_attribute-зеркала,
	// пользовательский ввод под ключом "user_response").
	State map[string]any `json:"state"`

	// Status — текущий статус.
	Status ExecutionStatus `json:"status"`

	// ScheduledTaskID — id отложенной задачи возобновления, если
	// execution в статусе waiting.
	ScheduledTaskID string `json:"scheduled_task_id,omitempty"`

	// ErrorMessage — причина перехода в failed.
	ErrorMessage string `json:"error_message,omitempty"`

	// StartedAt — время создания execution.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время терминального перехода.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// LastExecutedAt — время последнего выполнения узла.
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`
}

// IsFinished возвращает true, если execution завершён.
func (e *FlowExecution) IsFinished() bool {
	return e.Status.IsTerminal()
}

// SetState записывает значение в state, инициализируя map при необходимости.
func (e *FlowExecution) SetState(key string, value any) {
	if e.State == nil {
		e.State = make(map[string]any)
	}
	e.State[key] = value
}

// MarkWaiting переводит execution в waiting с id отложенной задачи.
func (e *FlowExecution) MarkWaiting(taskID string) {
	now := time.Now().UTC()
	e.Status = ExecutionWaiting
	e.ScheduledTaskID = taskID
	e.LastExecutedAt = &now
}

// MarkRunning переводит execution в running (resume / user input).
func (e *FlowExecution) MarkRunning() {
	now := time.Now().UTC()
	e.Status = ExecutionRunning
	e.ScheduledTaskID = ""
	e.LastExecutedAt = &now
}

// MarkCompleted переводит execution в completed.
func (e *FlowExecution) MarkCompleted() {
	now := time.Now().UTC()
	e.Status = ExecutionCompleted
	e.CompletedAt = &now
	e.LastExecutedAt = &now
}

// MarkFailed переводит execution в failed с причиной.
func (e *FlowExecution) MarkFailed(reason string) {
	now := time.Now().UTC()
	e.Status = ExecutionFailed
	e.ErrorMessage = reason
	e.CompletedAt = &now
	e.LastExecutedAt = &now
}

// ExecutionLog — append-only запись о попытке выполнения узла.
type ExecutionLog struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// ExecutionID — execution, к которому относится запись.
	ExecutionID uuid.UUID `json:"execution_id"`

	// NodeIndex — индекс выполненного узла.
	NodeIndex int `json:"node_index"`

	// NodeType — тип узла на момент выполнения.
	NodeType string `json:"node_type"`

	// Action — executed или failed.
	Action LogAction `json:"action"`

	// Result — результат выполнения узла.
	Result map[string]any `json:"result,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// ExecutedAt — время записи.
	ExecutedAt time.Time `json:"executed_at"`
}
