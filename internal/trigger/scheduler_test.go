package trigger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/domain"
)

// --- fakes ---

type fakeStore struct {
	triggers []*domain.Trigger
	logs     []*domain.TriggerLog
	updated  []*domain.Trigger
}

func (f *fakeStore) ListDueSchedules(_ context.Context, now time.Time, _ int) ([]*domain.Trigger, error) {
	var due []*domain.Trigger
	for _, t := range f.triggers {
		if t.IsDue(now) {
			due = append(due, t)
		}
	}
	return due, nil
}

func (f *fakeStore) ListEventTriggers(_ context.Context, botID uuid.UUID, eventType string) ([]*domain.Trigger, error) {
	var out []*domain.Trigger
	for _, t := range f.triggers {
		if t.BotID == botID && t.Type == domain.TriggerEvent && t.EventType == eventType && t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateTrigger(_ context.Context, t *domain.Trigger) error {
	f.updated = append(f.updated, t)
	return nil
}

func (f *fakeStore) AppendLog(_ context.Context, l *domain.TriggerLog) error {
	f.logs = append(f.logs, l)
	return nil
}

type fakeContacts struct {
	all []*domain.Contact
}

func (f *fakeContacts) GetContact(_ context.Context, id uuid.UUID) (*domain.Contact, error) {
	for _, c := range f.all {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, errors.New("contact not found")
}

func (f *fakeContacts) ListContacts(_ context.Context, botID uuid.UUID) ([]*domain.Contact, error) {
	var out []*domain.Contact
	for _, c := range f.all {
		if c.BotID == botID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeContacts) ListContactsCreatedSince(_ context.Context, botID uuid.UUID, since time.Time) ([]*domain.Contact, error) {
	var out []*domain.Contact
	for _, c := range f.all {
		if c.BotID == botID && c.CreatedAt.After(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeContacts) ListContactsActiveSince(_ context.Context, botID uuid.UUID, _ time.Time) ([]*domain.Contact, error) {
	return f.ListContacts(context.Background(), botID)
}

type publishedStart struct {
	flowID    uuid.UUID
	contactID uuid.UUID
	state     map[string]any
}

type fakePublisher struct {
	starts []publishedStart
	fail   bool
}

func (f *fakePublisher) PublishExecutionStart(_ context.Context, flowID, contactID uuid.UUID, state map[string]any) error {
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.starts = append(f.starts, publishedStart{flowID, contactID, state})
	return nil
}

type fakeSweeper struct {
	calls []time.Time
}

func (f *fakeSweeper) FailStuckExecutions(_ context.Context, olderThan time.Time) (int, error) {
	f.calls = append(f.calls, olderThan)
	return 0, nil
}

// --- tests ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dueTrigger(botID uuid.UUID, at time.Time) *domain.Trigger {
	return &domain.Trigger{
		ID:                uuid.New(),
		BotID:             botID,
		FlowID:            uuid.New(),
		Name:              "morning-campaign",
		Type:              domain.TriggerSchedule,
		IsActive:          true,
		ScheduleType:      domain.ScheduleDaily,
		ScheduleTime:      "09:00",
		ContactFilterType: domain.ContactFilterAll,
		NextTriggerAt:     &at,
	}
}

func TestSchedulerTick_FiresDueTrigger(t *testing.T) {
	botID := uuid.New()
	now := time.Now().UTC()

	contacts := &fakeContacts{all: []*domain.Contact{
		{ID: uuid.New(), BotID: botID, CreatedAt: now.Add(-time.Hour)},
		{ID: uuid.New(), BotID: botID, CreatedAt: now.Add(-48 * time.Hour)},
	}}
	trg := dueTrigger(botID, now.Add(-time.Minute))
	store := &fakeStore{triggers: []*domain.Trigger{trg}}
	publisher := &fakePublisher{}
	sweeper := &fakeSweeper{}

	s := NewScheduler(SchedulerConfig{
		Store:     store,
		Contacts:  contacts,
		Publisher: publisher,
		Sweeper:   sweeper,
		Logger:    discardLogger(),
	})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(publisher.starts) != 2 {
		t.Fatalf("expected 2 launches, got %d", len(publisher.starts))
	}
	if publisher.starts[0].flowID != trg.FlowID {
		t.Errorf("launch for wrong flow: %v", publisher.starts[0].flowID)
	}
	if publisher.starts[0].state["trigger_type"] != "schedule" {
		t.Errorf("missing trigger_type in initial state: %v", publisher.starts[0].state)
	}

	// next_trigger_at сдвинут вперёд до публикации запусков.
	if trg.NextTriggerAt == nil || !trg.NextTriggerAt.After(now) {
		t.Errorf("next_trigger_at not advanced: %v", trg.NextTriggerAt)
	}
	if trg.LastTriggeredAt == nil {
		t.Error("last_triggered_at not recorded")
	}
	if len(store.updated) != 1 {
		t.Errorf("expected 1 trigger update, got %d", len(store.updated))
	}

	if len(store.logs) != 2 {
		t.Fatalf("expected 2 trigger log rows, got %d", len(store.logs))
	}
	if !store.logs[0].Success {
		t.Errorf("expected success log, got %v", store.logs[0])
	}

	if len(sweeper.calls) != 1 {
		t.Errorf("expected stuck sweep on tick, got %d calls", len(sweeper.calls))
	}
}

func TestSchedulerTick_OnceTriggerExhausts(t *testing.T) {
	botID := uuid.New()
	now := time.Now().UTC()

	trg := dueTrigger(botID, now.Add(-time.Minute))
	trg.ScheduleType = domain.ScheduleOnce
	trg.ScheduleTime = now.Add(-time.Minute).Format(time.RFC3339)

	store := &fakeStore{triggers: []*domain.Trigger{trg}}
	s := NewScheduler(SchedulerConfig{
		Store:     store,
		Contacts:  &fakeContacts{},
		Publisher: &fakePublisher{},
		Logger:    discardLogger(),
	})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if trg.NextTriggerAt != nil {
		t.Errorf("once trigger should have no next fire time, got %v", trg.NextTriggerAt)
	}
}

func TestSchedulerTick_NewContactsFilter(t *testing.T) {
	botID := uuid.New()
	now := time.Now().UTC()

	fresh := &domain.Contact{ID: uuid.New(), BotID: botID, CreatedAt: now.Add(-time.Hour)}
	old := &domain.Contact{ID: uuid.New(), BotID: botID, CreatedAt: now.Add(-72 * time.Hour)}

	trg := dueTrigger(botID, now.Add(-time.Minute))
	trg.ContactFilterType = domain.ContactFilterNew

	publisher := &fakePublisher{}
	s := NewScheduler(SchedulerConfig{
		Store:     &fakeStore{triggers: []*domain.Trigger{trg}},
		Contacts:  &fakeContacts{all: []*domain.Contact{fresh, old}},
		Publisher: publisher,
		Logger:    discardLogger(),
	})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(publisher.starts) != 1 || publisher.starts[0].contactID != fresh.ID {
		t.Errorf("expected launch only for fresh contact, got %v", publisher.starts)
	}
}

func TestSchedulerTick_PublishFailureLogged(t *testing.T) {
	botID := uuid.New()
	now := time.Now().UTC()

	trg := dueTrigger(botID, now.Add(-time.Minute))
	store := &fakeStore{triggers: []*domain.Trigger{trg}}
	contacts := &fakeContacts{all: []*domain.Contact{{ID: uuid.New(), BotID: botID}}}

	s := NewScheduler(SchedulerConfig{
		Store:     store,
		Contacts:  contacts,
		Publisher: &fakePublisher{fail: true},
		Logger:    discardLogger(),
	})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.logs) != 1 || store.logs[0].Success {
		t.Fatalf("expected failed trigger log, got %v", store.logs)
	}
	if store.logs[0].Error == "" {
		t.Error("expected error text in trigger log")
	}
	// Расписание всё равно сдвинуто: повторного шторма не будет.
	if trg.NextTriggerAt == nil || !trg.NextTriggerAt.After(now) {
		t.Errorf("next_trigger_at not advanced on failure: %v", trg.NextTriggerAt)
	}
}

func TestDispatcher_FireEvent(t *testing.T) {
	botID := uuid.New()
	contact := &domain.Contact{ID: uuid.New(), BotID: botID}

	trg := eventTrigger("order_placed", map[string]any{
		"total": map[string]any{"operator": ">", "value": float64(100)},
	})
	trg.BotID = botID
	trg.FlowID = uuid.New()
	trg.ContactFilterType = domain.ContactFilterSpecific

	store := &fakeStore{triggers: []*domain.Trigger{trg}}
	publisher := &fakePublisher{}

	d := NewDispatcher(DispatcherConfig{
		Store:     store,
		Contacts:  &fakeContacts{all: []*domain.Contact{contact}},
		Publisher: publisher,
		Logger:    discardLogger(),
	})

	launched, err := d.FireEvent(context.Background(), botID, "order_placed",
		&contact.ID, map[string]any{"total": float64(250)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if launched != 1 {
		t.Fatalf("expected 1 launch, got %d", launched)
	}
	start := publisher.starts[0]
	if start.flowID != trg.FlowID || start.contactID != contact.ID {
		t.Errorf("unexpected launch: %+v", start)
	}
	if start.state["trigger_type"] != "event" || start.state["event_type"] != "order_placed" {
		t.Errorf("unexpected initial state: %v", start.state)
	}

	if len(store.logs) != 1 || !store.logs[0].Success {
		t.Errorf("expected success trigger log, got %v", store.logs)
	}
	if trg.LastTriggeredAt == nil {
		t.Error("last_triggered_at not recorded")
	}
}

func TestDispatcher_FireEvent_ConditionsNotMet(t *testing.T) {
	botID := uuid.New()
	contact := &domain.Contact{ID: uuid.New(), BotID: botID}

	trg := eventTrigger("order_placed", map[string]any{
		"total": map[string]any{"operator": ">", "value": float64(100)},
	})
	trg.BotID = botID

	publisher := &fakePublisher{}
	d := NewDispatcher(DispatcherConfig{
		Store:     &fakeStore{triggers: []*domain.Trigger{trg}},
		Contacts:  &fakeContacts{all: []*domain.Contact{contact}},
		Publisher: publisher,
		Logger:    discardLogger(),
	})

	launched, err := d.FireEvent(context.Background(), botID, "order_placed",
		&contact.ID, map[string]any{"total": float64(50)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if launched != 0 || len(publisher.starts) != 0 {
		t.Errorf("expected no launches, got %d", launched)
	}
}
