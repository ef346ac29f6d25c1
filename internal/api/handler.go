package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/mq"
	"github.com/shaiso/botflow/internal/repo"
)

// Publisher публикует команды в очередь.
type Publisher interface {
	PublishExecutionStart(ctx context.Context, flowID, contactID uuid.UUID, initialState map[string]any) error
	PublishInboundMessage(ctx context.Context, payload mq.InboundMessagePayload) error
}

// EventDispatcher запускает event-триггеры.
type EventDispatcher interface {
	FireEvent(ctx context.Context, botID uuid.UUID, eventType string, contactID *uuid.UUID, eventData map[string]any) (int, error)
}

// TaskCanceller снимает отложенные задачи возобновления.
type TaskCanceller interface {
	CancelTask(ctx context.Context, taskID string) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	flowRepo      *repo.FlowRepo
	executionRepo *repo.ExecutionRepo
	contactRepo   *repo.ContactRepo
	triggerRepo   *repo.TriggerRepo
	publisher     Publisher
	dispatcher    EventDispatcher
	tasks         TaskCanceller
	logger        *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	FlowRepo      *repo.FlowRepo
	ExecutionRepo *repo.ExecutionRepo
	ContactRepo   *repo.ContactRepo
	TriggerRepo   *repo.TriggerRepo
	Publisher     Publisher
	Dispatcher    EventDispatcher
	Tasks         TaskCanceller
	Logger        *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		flowRepo:      cfg.FlowRepo,
		executionRepo: cfg.ExecutionRepo,
		contactRepo:   cfg.ContactRepo,
		triggerRepo:   cfg.TriggerRepo,
		publisher:     cfg.Publisher,
		dispatcher:    cfg.Dispatcher,
		tasks:         cfg.Tasks,
		logger:        cfg.Logger,
	}
}
