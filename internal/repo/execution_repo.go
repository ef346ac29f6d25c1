package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/botflow/internal/domain"
)

// ExecutionRepo — репозиторий flow executions и журнала выполнения.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

const executionColumns = `
	id, flow_id, contact_id, bot_id, current_node_index, state, status,
	scheduled_task_id, error_message, started_at, completed_at, last_executed_at
`

// CreateExecution создаёт новый execution.
//
// Частичный уникальный индекс по contact_id (status IN running, waiting)
// гарантирует не более одного активного execution на контакт даже при
// гонке параллельных запусков.
func (r *ExecutionRepo) CreateExecution(ctx context.Context, e *domain.FlowExecution) error {
	stateJSON, err := json.Marshal(e.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	query := `
		INSERT INTO flow_executions
			(id, flow_id, contact_id, bot_id, current_node_index, state, status,
			 scheduled_task_id, error_message, started_at, completed_at, last_executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.pool.Exec(ctx, query,
		e.ID,
		e.FlowID,
		e.ContactID,
		e.BotID,
		e.CurrentNodeIndex,
		stateJSON,
		e.Status,
		nullString(e.ScheduledTaskID),
		nullString(e.ErrorMessage),
		e.StartedAt,
		e.CompletedAt,
		e.LastExecutedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetExecution возвращает execution по ID.
func (r *ExecutionRepo) GetExecution(ctx context.Context, id uuid.UUID) (*domain.FlowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM flow_executions WHERE id = $1`
	return scanExecution(r.pool.QueryRow(ctx, query, id))
}

// GetActiveByContact возвращает активный execution контакта
// или (nil, nil), если такого нет.
func (r *ExecutionRepo) GetActiveByContact(ctx context.Context, contactID uuid.UUID) (*domain.FlowExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM flow_executions
		WHERE contact_id = $1 AND status IN ('running', 'waiting')
	`
	e, err := scanExecution(r.pool.QueryRow(ctx, query, contactID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return e, err
}

// UpdateExecution сохраняет изменённый execution.
func (r *ExecutionRepo) UpdateExecution(ctx context.Context, e *domain.FlowExecution) error {
	stateJSON, err := json.Marshal(e.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	query := `
		UPDATE flow_executions
		SET current_node_index = $2, state = $3, status = $4,
		    scheduled_task_id = $5, error_message = $6,
		    completed_at = $7, last_executed_at = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		e.ID,
		e.CurrentNodeIndex,
		stateJSON,
		e.Status,
		nullString(e.ScheduledTaskID),
		nullString(e.ErrorMessage),
		e.CompletedAt,
		e.LastExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByContact возвращает executions контакта, новые первыми.
func (r *ExecutionRepo) ListByContact(ctx context.Context, contactID uuid.UUID, limit, offset int) ([]domain.FlowExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM flow_executions
		WHERE contact_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, contactID, limit, offset)
}

// ListByFlow возвращает executions одного flow, новые первыми.
func (r *ExecutionRepo) ListByFlow(ctx context.Context, flowID uuid.UUID, limit, offset int) ([]domain.FlowExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM flow_executions
		WHERE flow_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, flowID, limit, offset)
}

// FailStuckExecutions переводит в failed executions, застрявшие в
// running с last_executed_at раньше olderThan.
//
// Waiting executions не затрагиваются: длительность wait-узла может
// законно превышать любой порог зачистки, их возобновлением владеет
// delay queue.
func (r *ExecutionRepo) FailStuckExecutions(ctx context.Context, olderThan time.Time) (int, error) {
	query := `
		UPDATE flow_executions
		SET status = 'failed', error_message = 'execution timed out',
		    completed_at = now()
		WHERE status = 'running'
		  AND COALESCE(last_executed_at, started_at) < $1
	`
	result, err := r.pool.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("fail stuck executions: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// AppendLog пишет запись журнала выполнения узла.
func (r *ExecutionRepo) AppendLog(ctx context.Context, l *domain.ExecutionLog) error {
	resultJSON, err := json.Marshal(l.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		INSERT INTO execution_logs (id, execution_id, node_index, node_type, action, result, error, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		l.ID,
		l.ExecutionID,
		l.NodeIndex,
		l.NodeType,
		l.Action,
		resultJSON,
		nullString(l.Error),
		l.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution log: %w", err)
	}
	return nil
}

// ListLogs возвращает журнал execution в порядке выполнения.
func (r *ExecutionRepo) ListLogs(ctx context.Context, executionID uuid.UUID, limit, offset int) ([]domain.ExecutionLog, error) {
	query := `
		SELECT id, execution_id, node_index, node_type, action, result, error, executed_at
		FROM execution_logs
		WHERE execution_id = $1
		ORDER BY executed_at ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, executionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.ExecutionLog
	for rows.Next() {
		var l domain.ExecutionLog
		var resultJSON []byte
		var logError *string

		err := rows.Scan(
			&l.ID,
			&l.ExecutionID,
			&l.NodeIndex,
			&l.NodeType,
			&l.Action,
			&resultJSON,
			&logError,
			&l.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}
		if logError != nil {
			l.Error = *logError
		}
		if resultJSON != nil {
			if err := json.Unmarshal(resultJSON, &l.Result); err != nil {
				return nil, fmt.Errorf("unmarshal result: %w", err)
			}
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// --- Helpers ---

func (r *ExecutionRepo) list(ctx context.Context, query string, args ...any) ([]domain.FlowExecution, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var executions []domain.FlowExecution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *e)
	}
	return executions, rows.Err()
}

// scanExecution сканирует одну строку в FlowExecution.
func scanExecution(row pgx.Row) (*domain.FlowExecution, error) {
	var e domain.FlowExecution
	var stateJSON []byte
	var taskID, errorMessage *string

	err := row.Scan(
		&e.ID,
		&e.FlowID,
		&e.ContactID,
		&e.BotID,
		&e.CurrentNodeIndex,
		&stateJSON,
		&e.Status,
		&taskID,
		&errorMessage,
		&e.StartedAt,
		&e.CompletedAt,
		&e.LastExecutedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	if taskID != nil {
		e.ScheduledTaskID = *taskID
	}
	if errorMessage != nil {
		e.ErrorMessage = *errorMessage
	}
	if stateJSON != nil {
		if err := json.Unmarshal(stateJSON, &e.State); err != nil {
			return nil, fmt.Errorf("unmarshal state: %w", err)
		}
	}
	return &e, nil
}
