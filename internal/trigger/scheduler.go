package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/domain"
	"github.com/shaiso/botflow/internal/telemetry"
)

const (
	// newContactWindow — окно фильтра new_contacts.
	newContactWindow = 24 * time.Hour

	// activeContactWindow — окно фильтра active_contacts.
	activeContactWindow = 7 * 24 * time.Hour

	// stuckExecutionTimeout — порог, после которого running-execution
	// считается зависшим.
	stuckExecutionTimeout = 30 * time.Minute
)

// Scheduler обрабатывает due schedule-триггеры тиками.
type Scheduler struct {
	store     Store
	contacts  ContactSource
	publisher StartPublisher
	sweeper   ExecutionSweeper
	log       *slog.Logger
	batchSize int
}

// SchedulerConfig — конфигурация Scheduler.
type SchedulerConfig struct {
	Store     Store
	Contacts  ContactSource
	Publisher StartPublisher
	Sweeper   ExecutionSweeper // опционально
	Logger    *slog.Logger
	BatchSize int // количество триггеров за один тик (default: 100)
}

// NewScheduler создаёт Scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Scheduler{
		store:     cfg.Store,
		contacts:  cfg.Contacts,
		publisher: cfg.Publisher,
		sweeper:   cfg.Sweeper,
		log:       cfg.Logger,
		batchSize: batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedule-триггеры (is_active, next_trigger_at <= now)
// 2. Сдвигает next_trigger_at ДО публикации запусков: сбой дальше по
//    цепочке не приводит к повторному срабатыванию на следующем тике
// 3. Резолвит область контактов и публикует запуски flow
// 4. Зачищает зависшие executions
//
// Ошибки одного триггера не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now().UTC()

	triggers, err := s.store.ListDueSchedules(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due triggers: %w", err)
	}

	var processed, launched int
	for _, t := range triggers {
		n, err := s.processTrigger(ctx, t, now)
		if err != nil {
			s.log.Error("failed to process trigger",
				"trigger_id", t.ID, "trigger_name", t.Name, "error", err)
			continue
		}
		processed++
		launched += n
	}

	if len(triggers) > 0 {
		s.log.Info("scheduler tick completed",
			"due", len(triggers), "processed", processed, "launched", launched)
	}

	s.sweepStuck(ctx, now)
	return nil
}

// processTrigger обрабатывает один due-триггер.
// Возвращает количество опубликованных запусков.
func (s *Scheduler) processTrigger(ctx context.Context, t *domain.Trigger, now time.Time) (int, error) {
	dueAt := now
	if t.NextTriggerAt != nil {
		dueAt = *t.NextTriggerAt
	}

	// Сначала сдвигаем расписание, потом запускаем.
	next, err := NextFireTime(t, now)
	switch {
	case err == nil:
		t.NextTriggerAt = &next
	case errors.Is(err, ErrScheduleExhausted):
		t.NextTriggerAt = nil
	default:
		// Расписание не вычисляется — деактивируем, иначе триггер
		// будет due на каждом тике.
		s.log.Error("failed to compute next fire time, deactivating trigger",
			"trigger_id", t.ID, "error", err)
		t.IsActive = false
		t.NextTriggerAt = nil
	}
	t.LastTriggeredAt = &now

	if err := s.store.UpdateTrigger(ctx, t); err != nil {
		return 0, fmt.Errorf("update trigger: %w", err)
	}

	contacts, err := s.resolveContacts(ctx, t, now)
	if err != nil {
		return 0, fmt.Errorf("resolve contacts: %w", err)
	}

	launched := 0
	for _, c := range contacts {
		if err := s.launch(ctx, t, c, dueAt); err != nil {
			s.log.Error("failed to launch flow from trigger",
				"trigger_id", t.ID, "contact_id", c.ID, "error", err)
			continue
		}
		launched++
	}

	s.log.Info("schedule trigger fired",
		"trigger_id", t.ID, "trigger_name", t.Name,
		"due_at", dueAt, "contacts", len(contacts), "launched", launched)
	return launched, nil
}

// resolveContacts возвращает контакты в области триггера.
func (s *Scheduler) resolveContacts(ctx context.Context, t *domain.Trigger, now time.Time) ([]*domain.Contact, error) {
	switch t.ContactFilterType {
	case domain.ContactFilterAll, "":
		return s.contacts.ListContacts(ctx, t.BotID)
	case domain.ContactFilterNew:
		return s.contacts.ListContactsCreatedSince(ctx, t.BotID, now.Add(-newContactWindow))
	case domain.ContactFilterActive:
		return s.contacts.ListContactsActiveSince(ctx, t.BotID, now.Add(-activeContactWindow))
	case domain.ContactFilterSpecific:
		// У schedule-триггера нет контекста события со списком контактов.
		s.log.Warn("schedule trigger with specific contact filter, skipping",
			"trigger_id", t.ID)
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown contact filter %q", t.ContactFilterType)
	}
}

// launch публикует запуск flow и пишет запись в журнал срабатываний.
func (s *Scheduler) launch(ctx context.Context, t *domain.Trigger, c *domain.Contact, dueAt time.Time) error {
	state := map[string]any{
		"triggered_by": t.Name,
		"trigger_type": string(domain.TriggerSchedule),
	}

	pubErr := s.publisher.PublishExecutionStart(ctx, t.FlowID, c.ID, state)
	if pubErr == nil {
		telemetry.TriggersFired.WithLabelValues(string(domain.TriggerSchedule)).Inc()
	}

	entry := &domain.TriggerLog{
		ID:           uuid.New(),
		TriggerID:    t.ID,
		ContactID:    c.ID,
		MatchedValue: dueAt.Format(time.RFC3339),
		Success:      pubErr == nil,
		TriggeredAt:  time.Now().UTC(),
	}
	if pubErr != nil {
		entry.Error = pubErr.Error()
	}
	if err := s.store.AppendLog(ctx, entry); err != nil {
		s.log.Warn("failed to append trigger log",
			"trigger_id", t.ID, "error", err)
	}

	return pubErr
}

// sweepStuck переводит зависшие executions в failed.
func (s *Scheduler) sweepStuck(ctx context.Context, now time.Time) {
	if s.sweeper == nil {
		return
	}
	n, err := s.sweeper.FailStuckExecutions(ctx, now.Add(-stuckExecutionTimeout))
	if err != nil {
		s.log.Error("failed to sweep stuck executions", "error", err)
		return
	}
	if n > 0 {
		s.log.Warn("failed stuck executions", "count", n)
	}
}
