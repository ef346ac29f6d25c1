package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/domain"
	"github.com/shaiso/botflow/internal/flow"
	"github.com/shaiso/botflow/internal/telemetry"
)

// maxChainedNodes — лимит узлов, выполняемых синхронно за один прогон.
// Валидатор отклоняет циклы, но лимит защищает от структур, записанных
// в обход API: превышение переводит execution в failed.
const maxChainedNodes = 100

// Config — зависимости Engine.
type Config struct {
	Flows      FlowStore
	Executions ExecutionStore
	Contacts   ContactStore
	Messenger  Messenger
	Scheduler  TaskScheduler
	Logger     *slog.Logger
}

// Engine выполняет flows для контактов.
type Engine struct {
	flows      FlowStore
	executions ExecutionStore
	contacts   ContactStore
	scheduler  TaskScheduler
	log        *slog.Logger

	sendMessage  *sendMessageExecutor
	wait         *waitExecutor
	condition    *conditionExecutor
	webhook      *webhookExecutor
	setAttribute *setAttributeExecutor
}

// New создаёт Engine.
func New(cfg Config) *Engine {
	return &Engine{
		flows:        cfg.Flows,
		executions:   cfg.Executions,
		contacts:     cfg.Contacts,
		scheduler:    cfg.Scheduler,
		log:          cfg.Logger,
		sendMessage:  &sendMessageExecutor{messenger: cfg.Messenger},
		wait:         &waitExecutor{scheduler: cfg.Scheduler},
		condition:    &conditionExecutor{},
		webhook:      newWebhookExecutor(),
		setAttribute: &setAttributeExecutor{contacts: cfg.Contacts},
	}
}

// StartFlow запускает flow для контакта с узла 0.
//
// Если у контакта уже есть активный execution, он возвращается без
// изменений: повторный запуск не прерывает текущий диалог. Ошибка
// выполнения узлов не возвращается как error — execution переходит в
// failed и возвращается вызывающему.
func (e *Engine) StartFlow(ctx context.Context, flowID, contactID uuid.UUID, initialState map[string]any) (*domain.FlowExecution, error) {
	existing, err := e.executions.GetActiveByContact(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("check active execution: %w", err)
	}
	if existing != nil {
		e.log.Info("contact already has active execution",
			"contact_id", contactID, "execution_id", existing.ID)
		return existing, nil
	}

	fl, err := e.flows.GetFlow(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("load flow: %w", err)
	}
	if !fl.IsActive {
		return nil, fmt.Errorf("flow %s: %w", flowID, ErrFlowInactive)
	}

	contact, err := e.contacts.GetContact(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}

	state := make(map[string]any, len(initialState))
	for k, v := range initialState {
		state[k] = v
	}

	exec := &domain.FlowExecution{
		ID:               uuid.New(),
		FlowID:           fl.ID,
		ContactID:        contact.ID,
		BotID:            fl.BotID,
		CurrentNodeIndex: 0,
		State:            state,
		Status:           domain.ExecutionRunning,
		StartedAt:        time.Now().UTC(),
	}

	if err := e.executions.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}

	telemetry.ExecutionsStarted.Inc()
	e.log.Info("flow started",
		"execution_id", exec.ID, "flow_id", fl.ID, "contact_id", contact.ID)

	ec := e.newContext(exec, fl, contact)
	if err := e.run(ctx, ec); err != nil {
		return nil, err
	}
	return exec, nil
}

// Resume возобновляет execution из waiting с сохранённого узла.
//
// Идемпотентен: execution не в waiting (уже возобновлён пользовательским
// вводом, завершён, отменён) — warning и no-op. Отложенная задача может
// сработать после того, как execution ушёл из waiting другим путём.
func (e *Engine) Resume(ctx context.Context, executionID uuid.UUID) (*domain.FlowExecution, error) {
	exec, err := e.executions.GetExecution(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("load execution: %w", err)
	}

	if exec.Status != domain.ExecutionWaiting {
		e.log.Warn("resume on non-waiting execution",
			"execution_id", exec.ID, "status", exec.Status)
		return exec, nil
	}

	exec.MarkRunning()
	if err := e.executions.UpdateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("update execution: %w", err)
	}

	ec, err := e.loadContext(ctx, exec)
	if err != nil {
		return nil, err
	}
	if err := e.run(ctx, ec); err != nil {
		return nil, err
	}
	return exec, nil
}

// HandleUserInput записывает ответ пользователя в state и возобновляет
// execution. Запланированная задача отложенного возобновления снимается.
func (e *Engine) HandleUserInput(ctx context.Context, executionID uuid.UUID, input, inputType string) (*domain.FlowExecution, error) {
	exec, err := e.executions.GetExecution(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("load execution: %w", err)
	}

	if exec.Status != domain.ExecutionWaiting {
		e.log.Warn("user input on non-waiting execution",
			"execution_id", exec.ID, "status", exec.Status)
		return exec, nil
	}

	if exec.ScheduledTaskID != "" {
		if err := e.scheduler.CancelTask(ctx, exec.ScheduledTaskID); err != nil {
			e.log.Warn("failed to cancel scheduled task",
				"execution_id", exec.ID, "task_id", exec.ScheduledTaskID, "error", err)
		}
	}

	if inputType == "" {
		inputType = "text"
	}
	exec.SetState("user_response", input)
	exec.SetState("user_response_type", inputType)
	exec.SetState("last_user_input_at", time.Now().UTC().Format(time.RFC3339))

	exec.MarkRunning()
	if err := e.executions.UpdateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("update execution: %w", err)
	}

	e.log.Info("user input received",
		"execution_id", exec.ID, "input_type", inputType)

	ec, err := e.loadContext(ctx, exec)
	if err != nil {
		return nil, err
	}
	if err := e.run(ctx, ec); err != nil {
		return nil, err
	}
	return exec, nil
}

// Cancel прерывает активный execution.
func (e *Engine) Cancel(ctx context.Context, executionID uuid.UUID) (*domain.FlowExecution, error) {
	exec, err := e.executions.GetExecution(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("load execution: %w", err)
	}

	if exec.IsFinished() {
		return nil, fmt.Errorf("execution %s: %w", exec.ID, ErrExecutionFinished)
	}

	if exec.ScheduledTaskID != "" {
		if err := e.scheduler.CancelTask(ctx, exec.ScheduledTaskID); err != nil {
			e.log.Warn("failed to cancel scheduled task",
				"execution_id", exec.ID, "task_id", exec.ScheduledTaskID, "error", err)
		}
	}

	exec.MarkFailed("cancelled")
	if err := e.executions.UpdateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("update execution: %w", err)
	}

	e.log.Info("execution cancelled", "execution_id", exec.ID)
	return exec, nil
}

// newContext собирает execContext из уже загруженных сущностей.
func (e *Engine) newContext(exec *domain.FlowExecution, fl *domain.Flow, contact *domain.Contact) *execContext {
	return &execContext{
		execution: exec,
		flow:      fl,
		structure: flow.Normalize(fl.Structure),
		contact:   contact,
		contacts:  e.contacts,
		log:       e.log,
	}
}

// loadContext загружает flow и контакт execution и собирает execContext.
func (e *Engine) loadContext(ctx context.Context, exec *domain.FlowExecution) (*execContext, error) {
	fl, err := e.flows.GetFlow(ctx, exec.FlowID)
	if err != nil {
		return nil, fmt.Errorf("load flow: %w", err)
	}
	contact, err := e.contacts.GetContact(ctx, exec.ContactID)
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}
	return e.newContext(exec, fl, contact), nil
}

// run выполняет узлы с текущего индекса, пока execution не завершится,
// не встанет на ожидание или не упрётся в лимит цепочки.
//
// Возвращаемая ошибка — инфраструктурная (хранилище недоступно).
// Логические ошибки узлов переводят execution в failed и ошибкой
// не являются.
func (e *Engine) run(ctx context.Context, ec *execContext) error {
	for steps := 0; steps < maxChainedNodes; steps++ {
		idx := ec.execution.CurrentNodeIndex
		if idx < 0 || idx >= len(ec.structure) {
			return e.complete(ctx, ec)
		}

		node := ec.structure[idx]
		// Нормализация уже прошла: отсутствие типа или конфигурации
		// означает повреждённую структуру, а не недозаполненную.
		if node.Type == "" || node.Config == nil || !domain.ValidNodeTypes[node.Type] {
			return e.fail(ctx, ec, fmt.Sprintf("corrupted flow node at index %d", idx))
		}

		res := e.dispatch(ctx, ec, node)
		telemetry.NodesExecuted.WithLabelValues(string(node.Type)).Inc()
		e.appendLog(ctx, ec, idx, node, res)

		if !res.Success {
			return e.fail(ctx, ec, fmt.Sprintf("node %d (%s): %s", idx, node.Type, res.Error))
		}

		if res.ScheduledTaskID != "" {
			if res.NextNodeIndex != nil {
				ec.execution.CurrentNodeIndex = *res.NextNodeIndex
			} else {
				ec.execution.CurrentNodeIndex = domain.EndOfFlowIndex
			}
			ec.execution.MarkWaiting(res.ScheduledTaskID)
			if err := e.executions.UpdateExecution(ctx, ec.execution); err != nil {
				return fmt.Errorf("update execution: %w", err)
			}
			e.log.Info("execution waiting",
				"execution_id", ec.execution.ID, "task_id", res.ScheduledTaskID)
			return nil
		}

		if res.NextNodeIndex == nil {
			return e.complete(ctx, ec)
		}

		ec.execution.CurrentNodeIndex = *res.NextNodeIndex
		now := time.Now().UTC()
		ec.execution.LastExecutedAt = &now
		if err := e.executions.UpdateExecution(ctx, ec.execution); err != nil {
			return fmt.Errorf("update execution: %w", err)
		}
	}

	return e.fail(ctx, ec, fmt.Sprintf("node chain exceeded limit of %d", maxChainedNodes))
}

// dispatch выполняет узел по типу.
func (e *Engine) dispatch(ctx context.Context, ec *execContext, node domain.Node) *Result {
	switch node.Type {
	case domain.NodeSendMessage:
		return e.sendMessage.execute(ctx, ec, node)
	case domain.NodeWait:
		return e.wait.execute(ctx, ec, node)
	case domain.NodeCondition:
		return e.condition.execute(ctx, ec, node)
	case domain.NodeWebhookAction:
		return e.webhook.execute(ctx, ec, node)
	case domain.NodeSetAttribute:
		return e.setAttribute.execute(ctx, ec, node)
	default:
		return &Result{Success: false, Error: fmt.Sprintf("unknown node type %q", node.Type)}
	}
}

// appendLog пишет запись журнала о попытке выполнения узла.
// Ошибка записи не прерывает выполнение.
func (e *Engine) appendLog(ctx context.Context, ec *execContext, idx int, node domain.Node, res *Result) {
	action := domain.LogActionExecuted
	if !res.Success {
		action = domain.LogActionFailed
	}

	entry := &domain.ExecutionLog{
		ID:          uuid.New(),
		ExecutionID: ec.execution.ID,
		NodeIndex:   idx,
		NodeType:    string(node.Type),
		Action:      action,
		Result:      res.Data,
		Error:       res.Error,
		ExecutedAt:  time.Now().UTC(),
	}

	if err := e.executions.AppendLog(ctx, entry); err != nil {
		e.log.Error("failed to append execution log",
			"execution_id", ec.execution.ID, "node_index", idx, "error", err)
	}
}

// complete переводит execution в completed.
func (e *Engine) complete(ctx context.Context, ec *execContext) error {
	ec.execution.MarkCompleted()
	if err := e.executions.UpdateExecution(ctx, ec.execution); err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	telemetry.ExecutionsCompleted.Inc()
	e.log.Info("execution completed", "execution_id", ec.execution.ID)
	return nil
}

// fail переводит execution в failed с причиной.
func (e *Engine) fail(ctx context.Context, ec *execContext, reason string) error {
	ec.execution.MarkFailed(reason)
	if err := e.executions.UpdateExecution(ctx, ec.execution); err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	telemetry.ExecutionsFailed.Inc()
	e.log.Error("execution failed",
		"execution_id", ec.execution.ID, "reason", reason)
	return nil
}
