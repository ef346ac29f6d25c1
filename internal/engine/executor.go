package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/domain"
)

// Result — результат выполнения одного узла.
type Result struct {
	// Success — узел выполнен без ошибки.
	Success bool

	// NextNodeIndex — индекс следующего узла. nil означает конец flow.
	NextNodeIndex *int

	// ScheduledTaskID — id отложенной задачи возобновления. Непустое
	// значение переводит execution в waiting: NextNodeIndex при этом
	// сохраняется в execution как точка возобновления.
	ScheduledTaskID string

	// Error — сообщение об ошибке (логическая ошибка узла).
	Error string

	// Data — данные для журнала выполнения.
	Data map[string]any
}

// FlowStore — чтение flows.
type FlowStore interface {
	GetFlow(ctx context.Context, id uuid.UUID) (*domain.Flow, error)
}

// ExecutionStore — персистентность executions и журнала.
//
// GetActiveByContact возвращает (nil, nil), если у контакта нет
// активного execution.
type ExecutionStore interface {
	GetExecution(ctx context.Context, id uuid.UUID) (*domain.FlowExecution, error)
	GetActiveByContact(ctx context.Context, contactID uuid.UUID) (*domain.FlowExecution, error)
	CreateExecution(ctx context.Context, e *domain.FlowExecution) error
	UpdateExecution(ctx context.Context, e *domain.FlowExecution) error
	AppendLog(ctx context.Context, l *domain.ExecutionLog) error
}

// ContactStore — чтение контактов и запись атрибутов.
type ContactStore interface {
	GetContact(ctx context.Context, id uuid.UUID) (*domain.Contact, error)
	GetAttributes(ctx context.Context, contactID uuid.UUID) (map[string]string, error)
	SetAttribute(ctx context.Context, contactID uuid.UUID, key, value string, valueType domain.AttributeValueType) error
}

// Messenger — отправка сообщений контакту.
type Messenger interface {
	SendText(ctx context.Context, c *domain.Contact, text string) error
	SendTemplate(ctx context.Context, c *domain.Contact, name string, params []string) error
	SendMedia(ctx context.Context, c *domain.Contact, mediaType, url, caption string) error
	SendInteractive(ctx context.Context, c *domain.Contact, payload map[string]any) error
}

// TaskScheduler — планирование отложенного возобновления execution.
type TaskScheduler interface {
	// ScheduleResume ставит задачу возобновления через delay и
	// возвращает её id.
	ScheduleResume(ctx context.Context, executionID uuid.UUID, nextNodeIndex int, delay time.Duration) (string, error)

	// CancelTask снимает запланированную задачу. Отмена уже
	// выполненной задачи не является ошибкой.
	CancelTask(ctx context.Context, taskID string) error
}
