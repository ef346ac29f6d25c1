package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/domain"
	"github.com/shaiso/botflow/internal/telemetry"
)

// Dispatcher обрабатывает прикладные события и запускает flows по
// event-триггерам.
type Dispatcher struct {
	store     Store
	matcher   *Matcher
	contacts  ContactSource
	publisher StartPublisher
	log       *slog.Logger
}

// DispatcherConfig — конфигурация Dispatcher.
type DispatcherConfig struct {
	Store     Store
	Contacts  ContactSource
	Publisher StartPublisher
	Logger    *slog.Logger
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		store:     cfg.Store,
		matcher:   NewMatcher(cfg.Logger),
		contacts:  cfg.Contacts,
		publisher: cfg.Publisher,
		log:       cfg.Logger,
	}
}

// FireEvent сопоставляет событие с event-триггерами бота и публикует
// запуски flows. contactID задаёт контакт события (фильтр specific);
// nil допустим для широковещательных событий.
//
// Возвращает количество опубликованных запусков. Ошибки отдельных
// триггеров изолируются.
func (d *Dispatcher) FireEvent(ctx context.Context, botID uuid.UUID, eventType string, contactID *uuid.UUID, eventData map[string]any) (int, error) {
	triggers, err := d.store.ListEventTriggers(ctx, botID, eventType)
	if err != nil {
		return 0, fmt.Errorf("list event triggers: %w", err)
	}

	now := time.Now().UTC()
	launched := 0

	for _, t := range triggers {
		if !d.matcher.MatchEvent(t, eventType, eventData) {
			continue
		}

		contacts, err := d.resolveContacts(ctx, t, contactID, now)
		if err != nil {
			d.log.Error("failed to resolve event trigger contacts",
				"trigger_id", t.ID, "error", err)
			continue
		}

		for _, c := range contacts {
			if err := d.launch(ctx, t, c, eventType, eventData); err != nil {
				d.log.Error("failed to launch flow from event",
					"trigger_id", t.ID, "contact_id", c.ID, "error", err)
				continue
			}
			launched++
		}

		t.LastTriggeredAt = &now
		if err := d.store.UpdateTrigger(ctx, t); err != nil {
			d.log.Warn("failed to update trigger",
				"trigger_id", t.ID, "error", err)
		}
	}

	d.log.Info("event dispatched",
		"bot_id", botID, "event_type", eventType, "launched", launched)
	return launched, nil
}

// resolveContacts возвращает контакты в области event-триггера.
func (d *Dispatcher) resolveContacts(ctx context.Context, t *domain.Trigger, contactID *uuid.UUID, now time.Time) ([]*domain.Contact, error) {
	switch t.ContactFilterType {
	case domain.ContactFilterSpecific, "":
		if contactID == nil {
			d.log.Warn("event without contact for specific filter, skipping",
				"trigger_id", t.ID)
			return nil, nil
		}
		c, err := d.contacts.GetContact(ctx, *contactID)
		if err != nil {
			return nil, fmt.Errorf("get contact %s: %w", contactID, err)
		}
		return []*domain.Contact{c}, nil
	case domain.ContactFilterAll:
		return d.contacts.ListContacts(ctx, t.BotID)
	case domain.ContactFilterNew:
		return d.contacts.ListContactsCreatedSince(ctx, t.BotID, now.Add(-newContactWindow))
	case domain.ContactFilterActive:
		return d.contacts.ListContactsActiveSince(ctx, t.BotID, now.Add(-activeContactWindow))
	default:
		return nil, fmt.Errorf("unknown contact filter %q", t.ContactFilterType)
	}
}

// launch публикует запуск flow и пишет запись в журнал срабатываний.
func (d *Dispatcher) launch(ctx context.Context, t *domain.Trigger, c *domain.Contact, eventType string, eventData map[string]any) error {
	state := map[string]any{
		"triggered_by": t.Name,
		"trigger_type": string(domain.TriggerEvent),
		"event_type":   eventType,
	}
	if len(eventData) > 0 {
		state["event_data"] = eventData
	}

	pubErr := d.publisher.PublishExecutionStart(ctx, t.FlowID, c.ID, state)
	if pubErr == nil {
		telemetry.TriggersFired.WithLabelValues(string(domain.TriggerEvent)).Inc()
	}

	entry := &domain.TriggerLog{
		ID:           uuid.New(),
		TriggerID:    t.ID,
		ContactID:    c.ID,
		MatchedValue: eventType,
		Success:      pubErr == nil,
		TriggeredAt:  time.Now().UTC(),
	}
	if pubErr != nil {
		entry.Error = pubErr.Error()
	}
	if err := d.store.AppendLog(ctx, entry); err != nil {
		d.log.Warn("failed to append trigger log",
			"trigger_id", t.ID, "error", err)
	}

	return pubErr
}
