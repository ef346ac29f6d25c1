package trigger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/domain"
)

// Store — персистентность триггеров и журнала срабатываний.
type Store interface {
	// ListDueSchedules возвращает активные schedule-триггеры с
	// next_trigger_at <= now.
	ListDueSchedules(ctx context.Context, now time.Time, limit int) ([]*domain.Trigger, error)

	// ListEventTriggers возвращает активные event-триггеры бота
	// по типу события.
	ListEventTriggers(ctx context.Context, botID uuid.UUID, eventType string) ([]*domain.Trigger, error)

	// UpdateTrigger сохраняет изменённый триггер.
	UpdateTrigger(ctx context.Context, t *domain.Trigger) error

	// AppendLog пишет запись о срабатывании.
	AppendLog(ctx context.Context, l *domain.TriggerLog) error
}

// ContactSource — выборка контактов по области триггера.
type ContactSource interface {
	GetContact(ctx context.Context, id uuid.UUID) (*domain.Contact, error)
	ListContacts(ctx context.Context, botID uuid.UUID) ([]*domain.Contact, error)
	ListContactsCreatedSince(ctx context.Context, botID uuid.UUID, since time.Time) ([]*domain.Contact, error)
	ListContactsActiveSince(ctx context.Context, botID uuid.UUID, since time.Time) ([]*domain.Contact, error)
}

// StartPublisher — публикация запуска flow в очередь.
type StartPublisher interface {
	PublishExecutionStart(ctx context.Context, flowID, contactID uuid.UUID, initialState map[string]any) error
}

// ExecutionSweeper — зачистка зависших executions.
type ExecutionSweeper interface {
	// FailStuckExecutions переводит в failed executions, застрявшие в
	// running дольше порога. Возвращает количество затронутых.
	FailStuckExecutions(ctx context.Context, olderThan time.Time) (int, error)
}
