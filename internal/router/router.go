package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/domain"
	"github.com/shaiso/botflow/internal/telemetry"
	"github.com/shaiso/botflow/internal/trigger"
)

// FlowRunner — операции engine, нужные маршрутизатору.
type FlowRunner interface {
	StartFlow(ctx context.Context, flowID, contactID uuid.UUID, initialState map[string]any) (*domain.FlowExecution, error)
	HandleUserInput(ctx context.Context, executionID uuid.UUID, input, inputType string) (*domain.FlowExecution, error)
}

// ContactResolver — поиск или создание контакта по номеру телефона.
type ContactResolver interface {
	GetOrCreateByPhone(ctx context.Context, botID uuid.UUID, phone string) (*domain.Contact, error)
}

// ExecutionLookup — поиск активного execution контакта.
// Возвращает (nil, nil), если активного execution нет.
type ExecutionLookup interface {
	GetActiveByContact(ctx context.Context, contactID uuid.UUID) (*domain.FlowExecution, error)
}

// TriggerSource — keyword-триггеры бота и журнал срабатываний.
type TriggerSource interface {
	ListKeywordTriggers(ctx context.Context, botID uuid.UUID) ([]*domain.Trigger, error)
	AppendLog(ctx context.Context, l *domain.TriggerLog) error
}

// Router обрабатывает входящие сообщения контактов.
type Router struct {
	runner     FlowRunner
	contacts   ContactResolver
	executions ExecutionLookup
	triggers   TriggerSource
	matcher    *trigger.Matcher
	log        *slog.Logger
}

// Config — зависимости Router.
type Config struct {
	Runner     FlowRunner
	Contacts   ContactResolver
	Executions ExecutionLookup
	Triggers   TriggerSource
	Logger     *slog.Logger
}

// New создаёт Router.
func New(cfg Config) *Router {
	return &Router{
		runner:     cfg.Runner,
		contacts:   cfg.Contacts,
		executions: cfg.Executions,
		triggers:   cfg.Triggers,
		matcher:    trigger.NewMatcher(cfg.Logger),
		log:        cfg.Logger,
	}
}

// HandleInbound маршрутизирует входящее сообщение.
//
// Контакт с активным execution отвечает в рамках диалога: сообщение
// уходит в HandleUserInput. Иначе сообщение проверяется по
// keyword-триггерам; совпадение запускает flow. Сообщение без активного
// диалога и без совпадений игнорируется.
func (r *Router) HandleInbound(ctx context.Context, botID uuid.UUID, phone, message, messageType string) (*domain.FlowExecution, error) {
	contact, err := r.contacts.GetOrCreateByPhone(ctx, botID, phone)
	if err != nil {
		return nil, fmt.Errorf("resolve contact: %w", err)
	}

	active, err := r.executions.GetActiveByContact(ctx, contact.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup active execution: %w", err)
	}
	if active != nil {
		return r.runner.HandleUserInput(ctx, active.ID, message, messageType)
	}

	triggers, err := r.triggers.ListKeywordTriggers(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("list keyword triggers: %w", err)
	}

	trg, keyword, ok := r.matcher.MatchKeyword(triggers, message)
	if !ok {
		r.log.Debug("inbound message matched nothing",
			"bot_id", botID, "contact_id", contact.ID)
		return nil, nil
	}

	exec, startErr := r.runner.StartFlow(ctx, trg.FlowID, contact.ID, map[string]any{
		"triggered_by": trg.Name,
		"trigger_type": string(domain.TriggerKeyword),
		"user_response": message,
	})

	entry := &domain.TriggerLog{
		ID:           uuid.New(),
		TriggerID:    trg.ID,
		ContactID:    contact.ID,
		MatchedValue: keyword,
		Success:      startErr == nil,
		TriggeredAt:  time.Now().UTC(),
	}
	if startErr != nil {
		entry.Error = startErr.Error()
	} else if exec != nil {
		entry.ExecutionID = &exec.ID
	}
	if err := r.triggers.AppendLog(ctx, entry); err != nil {
		r.log.Warn("failed to append trigger log",
			"trigger_id", trg.ID, "error", err)
	}

	if startErr != nil {
		return nil, fmt.Errorf("start flow from keyword: %w", startErr)
	}

	telemetry.TriggersFired.WithLabelValues(string(domain.TriggerKeyword)).Inc()
	r.log.Info("keyword trigger fired",
		"trigger_id", trg.ID, "keyword", keyword,
		"contact_id", contact.ID, "execution_id", exec.ID)
	return exec, nil
}
