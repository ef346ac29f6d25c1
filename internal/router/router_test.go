package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/domain"
)

type fakeRunner struct {
	started *domain.FlowExecution
	inputs  []string
}

func (f *fakeRunner) StartFlow(_ context.Context, flowID, contactID uuid.UUID, state map[string]any) (*domain.FlowExecution, error) {
	f.started = &domain.FlowExecution{
		ID:        uuid.New(),
		FlowID:    flowID,
		ContactID: contactID,
		State:     state,
		Status:    domain.ExecutionRunning,
	}
	return f.started, nil
}

func (f *fakeRunner) HandleUserInput(_ context.Context, executionID uuid.UUID, input, _ string) (*domain.FlowExecution, error) {
	f.inputs = append(f.inputs, input)
	return &domain.FlowExecution{ID: executionID, Status: domain.ExecutionRunning}, nil
}

type fakeContacts struct {
	contact *domain.Contact
}

func (f *fakeContacts) GetOrCreateByPhone(_ context.Context, botID uuid.UUID, phone string) (*domain.Contact, error) {
	if f.contact == nil {
		f.contact = &domain.Contact{ID: uuid.New(), BotID: botID, PhoneNumber: phone}
	}
	return f.contact, nil
}

type fakeExecutions struct {
	active *domain.FlowExecution
}

func (f *fakeExecutions) GetActiveByContact(_ context.Context, _ uuid.UUID) (*domain.FlowExecution, error) {
	return f.active, nil
}

type fakeTriggers struct {
	triggers []*domain.Trigger
	logs     []*domain.TriggerLog
	fail     bool
}

func (f *fakeTriggers) ListKeywordTriggers(_ context.Context, _ uuid.UUID) ([]*domain.Trigger, error) {
	if f.fail {
		return nil, errors.New("db down")
	}
	return f.triggers, nil
}

func (f *fakeTriggers) AppendLog(_ context.Context, l *domain.TriggerLog) error {
	f.logs = append(f.logs, l)
	return nil
}

func newRouter(runner *fakeRunner, executions *fakeExecutions, triggers *fakeTriggers) *Router {
	return New(Config{
		Runner:     runner,
		Contacts:   &fakeContacts{},
		Executions: executions,
		Triggers:   triggers,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func startTrigger() *domain.Trigger {
	return &domain.Trigger{
		ID:        uuid.New(),
		FlowID:    uuid.New(),
		Name:      "start-onboarding",
		Type:      domain.TriggerKeyword,
		IsActive:  true,
		Keywords:  []string{"start"},
		MatchType: domain.MatchExact,
	}
}

func TestHandleInbound_ActiveExecutionGetsInput(t *testing.T) {
	runner := &fakeRunner{}
	active := &domain.FlowExecution{ID: uuid.New(), Status: domain.ExecutionWaiting}
	triggers := &fakeTriggers{triggers: []*domain.Trigger{startTrigger()}}

	r := newRouter(runner, &fakeExecutions{active: active}, triggers)

	exec, err := r.HandleInbound(context.Background(), uuid.New(), "+1415", "start", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exec.ID != active.ID {
		t.Errorf("expected routing into active execution %s, got %s", active.ID, exec.ID)
	}
	if len(runner.inputs) != 1 || runner.inputs[0] != "start" {
		t.Errorf("input not forwarded: %v", runner.inputs)
	}
	if runner.started != nil {
		t.Error("keyword trigger fired despite active execution")
	}
}

func TestHandleInbound_KeywordStartsFlow(t *testing.T) {
	runner := &fakeRunner{}
	trg := startTrigger()
	triggers := &fakeTriggers{triggers: []*domain.Trigger{trg}}

	r := newRouter(runner, &fakeExecutions{}, triggers)

	exec, err := r.HandleInbound(context.Background(), uuid.New(), "+1415", "start", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exec == nil || exec.FlowID != trg.FlowID {
		t.Fatalf("expected flow %s started, got %+v", trg.FlowID, exec)
	}
	if exec.State["trigger_type"] != "keyword" {
		t.Errorf("initial state missing trigger_type: %v", exec.State)
	}
	if exec.State["user_response"] != "start" {
		t.Errorf("initial state missing original message: %v", exec.State)
	}

	if len(triggers.logs) != 1 {
		t.Fatalf("expected 1 trigger log, got %d", len(triggers.logs))
	}
	l := triggers.logs[0]
	if !l.Success || l.MatchedValue != "start" || l.ExecutionID == nil {
		t.Errorf("unexpected trigger log: %+v", l)
	}
}

func TestHandleInbound_NoMatchIsIgnored(t *testing.T) {
	runner := &fakeRunner{}
	triggers := &fakeTriggers{triggers: []*domain.Trigger{startTrigger()}}

	r := newRouter(runner, &fakeExecutions{}, triggers)

	exec, err := r.HandleInbound(context.Background(), uuid.New(), "+1415", "hello?", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec != nil {
		t.Errorf("expected no execution, got %+v", exec)
	}
	if runner.started != nil {
		t.Error("flow started without keyword match")
	}
	if len(triggers.logs) != 0 {
		t.Errorf("unexpected trigger logs: %v", triggers.logs)
	}
}

func TestHandleInbound_TriggerListFailure(t *testing.T) {
	r := newRouter(&fakeRunner{}, &fakeExecutions{}, &fakeTriggers{fail: true})

	_, err := r.HandleInbound(context.Background(), uuid.New(), "+1415", "start", "text")
	if err == nil {
		t.Fatal("expected error when trigger listing fails")
	}
}
