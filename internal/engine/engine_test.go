package engine

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

type fakeFlowStore struct {
	flows map[uuid.UUID]*domain.Flow
}

func (f *fakeFlowStore) GetFlow(_ context.Context, id uuid.UUID) (*domain.Flow, error) {
	fl, ok := f.flows[id]
	if !ok {
		return nil, errors.New("flow not found")
	}
	return fl, nil
}

type fakeExecutionStore struct {
	executions map[uuid.UUID]*domain.FlowExecution
	logs       []*domain.ExecutionLog
}

func (f *fakeExecutionStore) GetExecution(_ context.Context, id uuid.UUID) (*domain.FlowExecution, error) {
	e, ok := f.executions[id]
	if !ok {
		return nil, errors.New("execution not found")
	}
	return e, nil
}

func (f *fakeExecutionStore) GetActiveByContact(_ context.Context, contactID uuid.UUID) (*domain.FlowExecution, error) {
	for _, e := range f.executions {
		if e.ContactID == contactID && e.Status.IsActive() {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeExecutionStore) CreateExecution(_ context.Context, e *domain.FlowExecution) error {
	f.executions[e.ID] = e
	return nil
}

func (f *fakeExecutionStore) UpdateExecution(_ context.Context, e *domain.FlowExecution) error {
	f.executions[e.ID] = e
	return nil
}

func (f *fakeExecutionStore) AppendLog(_ context.Context, l *domain.ExecutionLog) error {
	f.logs = append(f.logs, l)
	return nil
}

type fakeContactStore struct {
	contact *domain.Contact
	attrs   map[string]string
}

func (f *fakeContactStore) GetContact(_ context.Context, id uuid.UUID) (*domain.Contact, error) {
	if f.contact == nil || f.contact.ID != id {
		return nil, errors.New("contact not found")
	}
	return f.contact, nil
}

func (f *fakeContactStore) GetAttributes(_ context.Context, _ uuid.UUID) (map[string]string, error) {
	return f.attrs, nil
}

func (f *fakeContactStore) SetAttribute(_ context.Context, _ uuid.UUID, key, value string, _ domain.AttributeValueType) error {
	if f.attrs == nil {
		f.attrs = make(map[string]string)
	}
	f.attrs[key] = value
	return nil
}

type fakeMessenger struct {
	texts []string
	fail  bool
}

func (f *fakeMessenger) SendText(_ context.Context, _ *domain.Contact, text string) error {
	if f.fail {
		return errors.New("gateway unavailable")
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) SendTemplate(_ context.Context, _ *domain.Contact, _ string, _ []string) error {
	return nil
}

func (f *fakeMessenger) SendMedia(_ context.Context, _ *domain.Contact, _, _, _ string) error {
	return nil
}

func (f *fakeMessenger) SendInteractive(_ context.Context, _ *domain.Contact, _ map[string]any) error {
	return nil
}

type scheduledTask struct {
	executionID   uuid.UUID
	nextNodeIndex int
	delay         time.Duration
}

type fakeScheduler struct {
	scheduled []scheduledTask
	cancelled []string
}

func (f *fakeScheduler) ScheduleResume(_ context.Context, executionID uuid.UUID, nextNodeIndex int, delay time.Duration) (string, error) {
	f.scheduled = append(f.scheduled, scheduledTask{executionID, nextNodeIndex, delay})
	return "task-" + executionID.String(), nil
}

func (f *fakeScheduler) CancelTask(_ context.Context, taskID string) error {
	f.cancelled = append(f.cancelled, taskID)
	return nil
}

// --- helpers ---

type testEnv struct {
	engine     *Engine
	flows      *fakeFlowStore
	executions *fakeExecutionStore
	contacts   *fakeContactStore
	messenger  *fakeMessenger
	scheduler  *fakeScheduler
	flow       *domain.Flow
	contact    *domain.Contact
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// greetingFlow — типичный onboarding: приветствие, ожидание, ветвление
// по ответу пользователя.
//
//	0: send "Welcome {{contact.first_name}}!"  → 1
//	1: wait 5 seconds                          → 2
//	2: condition user_response == "yes"        → true 3, false конец
//	3: send "Great!"                           → конец
func greetingFlow(botID uuid.UUID) *domain.Flow {
	return &domain.Flow{
		ID:       uuid.New(),
		BotID:    botID,
		Name:     "greeting",
		IsActive: true,
		Structure: domain.FlowStructure{
			{
				Type: domain.NodeSendMessage,
				Config: map[string]any{
					"content": map[string]any{"text": "Welcome {{contact.first_name}}!"},
					"next":    float64(1),
				},
			},
			{
				Type: domain.NodeWait,
				Config: map[string]any{
					"duration": float64(5),
					"unit":     "seconds",
					"next":     float64(2),
				},
			},
			{
				Type: domain.NodeCondition,
				Config: map[string]any{
					"variable":   "state.user_response",
					"operator":   "==",
					"value":      "yes",
					"true_path":  float64(3),
					"false_path": nil,
				},
			},
			{
				Type: domain.NodeSendMessage,
				Config: map[string]any{
					"content": map[string]any{"text": "Great!"},
					"next":    nil,
				},
			},
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	botID := uuid.New()
	fl := greetingFlow(botID)
	contact := &domain.Contact{
		ID:          uuid.New(),
		BotID:       botID,
		PhoneNumber: "+14155550100",
		FirstName:   "Ana",
	}

	env := &testEnv{
		flows:      &fakeFlowStore{flows: map[uuid.UUID]*domain.Flow{fl.ID: fl}},
		executions: &fakeExecutionStore{executions: map[uuid.UUID]*domain.FlowExecution{}},
		contacts:   &fakeContactStore{contact: contact},
		messenger:  &fakeMessenger{},
		scheduler:  &fakeScheduler{},
		flow:       fl,
		contact:    contact,
	}
	env.engine = New(Config{
		Flows:      env.flows,
		Executions: env.executions,
		Contacts:   env.contacts,
		Messenger:  env.messenger,
		Scheduler:  env.scheduler,
		Logger:     testLogger(),
	})
	return env
}

// --- tests ---

func TestStartFlow_RunsUntilWait(t *testing.T) {
	env := newTestEnv(t)

	exec, err := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exec.Status != domain.ExecutionWaiting {
		t.Errorf("expected status waiting, got %s", exec.Status)
	}
	if exec.CurrentNodeIndex != 2 {
		t.Errorf("expected current node 2 (after wait), got %d", exec.CurrentNodeIndex)
	}
	if exec.ScheduledTaskID == "" {
		t.Error("expected scheduled task id")
	}

	if len(env.messenger.texts) != 1 || env.messenger.texts[0] != "Welcome Ana!" {
		t.Errorf("unexpected sent messages: %v", env.messenger.texts)
	}

	if len(env.scheduler.scheduled) != 1 {
		t.Fatalf("expected 1 scheduled task, got %d", len(env.scheduler.scheduled))
	}
	if got := env.scheduler.scheduled[0].delay; got != 5*time.Second {
		t.Errorf("expected 5s delay, got %v", got)
	}
}

func TestStartFlow_ReturnsExistingActiveExecution(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("expected existing execution %s, got %s", first.ID, second.ID)
	}
	if len(env.executions.executions) != 1 {
		t.Errorf("expected 1 execution, got %d", len(env.executions.executions))
	}
	if len(env.messenger.texts) != 1 {
		t.Errorf("welcome message sent twice: %v", env.messenger.texts)
	}
}

func TestStartFlow_InactiveFlow(t *testing.T) {
	env := newTestEnv(t)
	env.flow.IsActive = false

	_, err := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)
	if !errors.Is(err, ErrFlowInactive) {
		t.Fatalf("expected ErrFlowInactive, got %v", err)
	}
}

func TestStartFlow_InitialStateAvailableToNodes(t *testing.T) {
	env := newTestEnv(t)
	env.flow.Structure = domain.FlowStructure{
		{
			Type: domain.NodeSendMessage,
			Config: map[string]any{
				"content": map[string]any{"text": "Source: {{state.triggered_by}}"},
				"next":    nil,
			},
		},
	}

	_, err := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID,
		map[string]any{"triggered_by": "keyword"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(env.messenger.texts) != 1 || env.messenger.texts[0] != "Source: keyword" {
		t.Errorf("unexpected messages: %v", env.messenger.texts)
	}
}

func TestHandleUserInput_ResumesAndCompletes(t *testing.T) {
	env := newTestEnv(t)

	exec, err := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exec, err = env.engine.HandleUserInput(context.Background(), exec.ID, "yes", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exec.Status != domain.ExecutionCompleted {
		t.Errorf("expected completed, got %s", exec.Status)
	}
	if exec.State["user_response"] != "yes" {
		t.Errorf("user_response not recorded: %v", exec.State)
	}
	if exec.State["user_response_type"] != "text" {
		t.Errorf("user_response_type not recorded: %v", exec.State)
	}
	if _, ok := exec.State["last_user_input_at"]; !ok {
		t.Error("last_user_input_at not recorded")
	}

	want := []string{"Welcome Ana!", "Great!"}
	if len(env.messenger.texts) != 2 || env.messenger.texts[0] != want[0] || env.messenger.texts[1] != want[1] {
		t.Errorf("expected messages %v, got %v", want, env.messenger.texts)
	}

	if len(env.scheduler.cancelled) != 1 {
		t.Errorf("expected scheduled task cancelled, got %v", env.scheduler.cancelled)
	}
}

func TestHandleUserInput_FalseBranchEndsFlow(t *testing.T) {
	env := newTestEnv(t)

	exec, _ := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)

	exec, err := env.engine.HandleUserInput(context.Background(), exec.ID, "no", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exec.Status != domain.ExecutionCompleted {
		t.Errorf("expected completed, got %s", exec.Status)
	}
	if len(env.messenger.texts) != 1 {
		t.Errorf("false branch should not send second message: %v", env.messenger.texts)
	}
}

func TestHandleUserInput_NonWaitingIsNoOp(t *testing.T) {
	env := newTestEnv(t)

	exec, _ := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)
	_, _ = env.engine.HandleUserInput(context.Background(), exec.ID, "yes", "text")

	// Повторный ввод после завершения: состояние не меняется.
	again, err := env.engine.HandleUserInput(context.Background(), exec.ID, "again", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Status != domain.ExecutionCompleted {
		t.Errorf("expected completed, got %s", again.Status)
	}
	if again.State["user_response"] != "yes" {
		t.Errorf("late input overwrote state: %v", again.State)
	}
}

func TestResume_NoUserResponseTakesFalseBranch(t *testing.T) {
	env := newTestEnv(t)

	exec, _ := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)

	// Таймер сработал, пользователь так и не ответил.
	exec, err := env.engine.Resume(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exec.Status != domain.ExecutionCompleted {
		t.Errorf("expected completed, got %s", exec.Status)
	}
	if len(env.messenger.texts) != 1 {
		t.Errorf("unexpected messages: %v", env.messenger.texts)
	}
}

func TestResume_NonWaitingIsNoOp(t *testing.T) {
	env := newTestEnv(t)

	exec, _ := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)
	_, _ = env.engine.HandleUserInput(context.Background(), exec.ID, "yes", "text")

	resumed, err := env.engine.Resume(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resumed.Status != domain.ExecutionCompleted {
		t.Errorf("resume changed terminal status: %s", resumed.Status)
	}
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)

	exec, _ := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)

	cancelled, err := env.engine.Cancel(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cancelled.Status != domain.ExecutionFailed {
		t.Errorf("expected failed, got %s", cancelled.Status)
	}
	if cancelled.ErrorMessage != "cancelled" {
		t.Errorf("expected cancelled reason, got %q", cancelled.ErrorMessage)
	}
	if len(env.scheduler.cancelled) != 1 {
		t.Errorf("expected scheduled task cancelled, got %v", env.scheduler.cancelled)
	}
}

func TestCancel_FinishedExecution(t *testing.T) {
	env := newTestEnv(t)

	exec, _ := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)
	_, _ = env.engine.HandleUserInput(context.Background(), exec.ID, "yes", "text")

	_, err := env.engine.Cancel(context.Background(), exec.ID)
	if !errors.Is(err, ErrExecutionFinished) {
		t.Fatalf("expected ErrExecutionFinished, got %v", err)
	}
}

func TestRun_NodeFailureFailsExecution(t *testing.T) {
	env := newTestEnv(t)
	env.messenger.fail = true

	exec, err := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exec.Status != domain.ExecutionFailed {
		t.Errorf("expected failed, got %s", exec.Status)
	}
	if exec.ErrorMessage == "" {
		t.Error("expected error message on failed execution")
	}

	if len(env.executions.logs) != 1 {
		t.Fatalf("expected 1 log row, got %d", len(env.executions.logs))
	}
	if env.executions.logs[0].Action != domain.LogActionFailed {
		t.Errorf("expected failed log action, got %s", env.executions.logs[0].Action)
	}
}

func TestRun_CorruptedNodeFailsExecution(t *testing.T) {
	env := newTestEnv(t)
	env.flow.Structure = domain.FlowStructure{
		{Type: "teleport", Config: map[string]any{}},
	}

	exec, err := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exec.Status != domain.ExecutionFailed {
		t.Errorf("expected failed, got %s", exec.Status)
	}
}

func TestRun_ChainLimitFailsExecution(t *testing.T) {
	env := newTestEnv(t)
	// Структура с циклом, записанная в обход валидации.
	env.flow.Structure = domain.FlowStructure{
		{
			Type: domain.NodeSendMessage,
			Config: map[string]any{
				"content": map[string]any{"text": "a"},
				"next":    float64(1),
			},
		},
		{
			Type: domain.NodeSendMessage,
			Config: map[string]any{
				"content": map[string]any{"text": "b"},
				"next":    float64(0),
			},
		},
	}

	exec, err := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exec.Status != domain.ExecutionFailed {
		t.Errorf("expected failed, got %s", exec.Status)
	}
	if len(env.messenger.texts) != maxChainedNodes {
		t.Errorf("expected %d sends before limit, got %d", maxChainedNodes, len(env.messenger.texts))
	}
}

func TestRun_ExecutionLogRecordsNodeTypes(t *testing.T) {
	env := newTestEnv(t)

	exec, _ := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)
	_, _ = env.engine.HandleUserInput(context.Background(), exec.ID, "yes", "text")

	wantTypes := []string{"send_message", "wait", "condition", "send_message"}
	if len(env.executions.logs) != len(wantTypes) {
		t.Fatalf("expected %d log rows, got %d", len(wantTypes), len(env.executions.logs))
	}
	for i, l := range env.executions.logs {
		if l.NodeType != wantTypes[i] {
			t.Errorf("log %d: expected type %s, got %s", i, wantTypes[i], l.NodeType)
		}
		if l.Action != domain.LogActionExecuted {
			t.Errorf("log %d: expected executed, got %s", i, l.Action)
		}
	}
}

func TestSetAttribute_MirrorsIntoState(t *testing.T) {
	env := newTestEnv(t)
	env.flow.Structure = domain.FlowStructure{
		{
			Type: domain.NodeSetAttribute,
			Config: map[string]any{
				"attribute_key":   "segment",
				"attribute_value": "vip",
				"next":            float64(1),
			},
		},
		{
			Type: domain.NodeSendMessage,
			Config: map[string]any{
				"content": map[string]any{"text": "You are {{state.contact.segment}}"},
				"next":    nil,
			},
		},
	}

	exec, err := env.engine.StartFlow(context.Background(), env.flow.ID, env.contact.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exec.State["contact.segment"] != "vip" {
		t.Errorf("attribute not mirrored into state: %v", exec.State)
	}
	if env.contacts.attrs["segment"] != "vip" {
		t.Errorf("attribute not persisted: %v", env.contacts.attrs)
	}
	if len(env.messenger.texts) != 1 || env.messenger.texts[0] != "You are vip" {
		t.Errorf("unexpected messages: %v", env.messenger.texts)
	}
}
