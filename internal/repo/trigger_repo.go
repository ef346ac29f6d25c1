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

// TriggerRepo — репозиторий триггеров и журнала срабатываний.
type TriggerRepo struct {
	pool *pgxpool.Pool
}

// NewTriggerRepo создаёт новый TriggerRepo.
func NewTriggerRepo(pool *pgxpool.Pool) *TriggerRepo {
	return &TriggerRepo{pool: pool}
}

const triggerColumns = `
	id, bot_id, flow_id, name, type, is_active, priority,
	keywords, match_type, case_sensitive,
	event_type, event_conditions,
	schedule_type, schedule_time, timezone, contact_filter_type,
	last_triggered_at, next_trigger_at, created_at, updated_at
`

// Create создаёт новый триггер.
func (r *TriggerRepo) Create(ctx context.Context, t *domain.Trigger) error {
	conditionsJSON, err := json.Marshal(t.EventConditions)
	if err != nil {
		return fmt.Errorf("marshal event conditions: %w", err)
	}

	query := `
		INSERT INTO triggers
			(id, bot_id, flow_id, name, type, is_active, priority,
			 keywords, match_type, case_sensitive,
			 event_type, event_conditions,
			 schedule_type, schedule_time, timezone, contact_filter_type,
			 last_triggered_at, next_trigger_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err = r.pool.Exec(ctx, query,
		t.ID,
		t.BotID,
		t.FlowID,
		t.Name,
		t.Type,
		t.IsActive,
		t.Priority,
		t.Keywords,
		nullString(string(t.MatchType)),
		t.CaseSensitive,
		nullString(t.EventType),
		conditionsJSON,
		nullString(string(t.ScheduleType)),
		nullString(t.ScheduleTime),
		nullString(t.Timezone),
		nullString(string(t.ContactFilterType)),
		t.LastTriggeredAt,
		t.NextTriggerAt,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trigger: %w", err)
	}
	return nil
}

// GetTrigger возвращает триггер по ID.
func (r *TriggerRepo) GetTrigger(ctx context.Context, id uuid.UUID) (*domain.Trigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM triggers WHERE id = $1`
	return scanTrigger(r.pool.QueryRow(ctx, query, id))
}

// List возвращает триггеры бота.
func (r *TriggerRepo) List(ctx context.Context, botID uuid.UUID, limit, offset int) ([]domain.Trigger, error) {
	query := `
		SELECT ` + triggerColumns + `
		FROM triggers
		WHERE bot_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, botID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	var triggers []domain.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, *t)
	}
	return triggers, rows.Err()
}

// ListKeywordTriggers возвращает активные keyword-триггеры бота,
// высокий приоритет первым.
func (r *TriggerRepo) ListKeywordTriggers(ctx context.Context, botID uuid.UUID) ([]*domain.Trigger, error) {
	query := `
		SELECT ` + triggerColumns + `
		FROM triggers
		WHERE bot_id = $1 AND type = 'keyword' AND is_active
		ORDER BY priority DESC
	`
	return r.listPtr(ctx, query, botID)
}

// ListEventTriggers возвращает активные event-триггеры бота по типу
// события.
func (r *TriggerRepo) ListEventTriggers(ctx context.Context, botID uuid.UUID, eventType string) ([]*domain.Trigger, error) {
	query := `
		SELECT ` + triggerColumns + `
		FROM triggers
		WHERE bot_id = $1 AND type = 'event' AND is_active AND event_type = $2
	`
	return r.listPtr(ctx, query, botID, eventType)
}

// ListDueSchedules возвращает активные schedule-триггеры с
// next_trigger_at <= now.
func (r *TriggerRepo) ListDueSchedules(ctx context.Context, now time.Time, limit int) ([]*domain.Trigger, error) {
	query := `
		SELECT ` + triggerColumns + `
		FROM triggers
		WHERE type = 'schedule' AND is_active AND next_trigger_at <= $1
		ORDER BY next_trigger_at ASC
		LIMIT $2
	`
	return r.listPtr(ctx, query, now, limit)
}

// UpdateTrigger сохраняет изменённый триггер.
func (r *TriggerRepo) UpdateTrigger(ctx context.Context, t *domain.Trigger) error {
	conditionsJSON, err := json.Marshal(t.EventConditions)
	if err != nil {
		return fmt.Errorf("marshal event conditions: %w", err)
	}

	query := `
		UPDATE triggers
		SET flow_id = $2, name = $3, is_active = $4, priority = $5,
		    keywords = $6, match_type = $7, case_sensitive = $8,
		    event_type = $9, event_conditions = $10,
		    schedule_type = $11, schedule_time = $12, timezone = $13,
		    contact_filter_type = $14,
		    last_triggered_at = $15, next_trigger_at = $16, updated_at = now()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		t.ID,
		t.FlowID,
		t.Name,
		t.IsActive,
		t.Priority,
		t.Keywords,
		nullString(string(t.MatchType)),
		t.CaseSensitive,
		nullString(t.EventType),
		conditionsJSON,
		nullString(string(t.ScheduleType)),
		nullString(t.ScheduleTime),
		nullString(t.Timezone),
		nullString(string(t.ContactFilterType)),
		t.LastTriggeredAt,
		t.NextTriggerAt,
	)
	if err != nil {
		return fmt.Errorf("update trigger: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет триггер.
func (r *TriggerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM triggers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendLog пишет запись о срабатывании триггера.
func (r *TriggerRepo) AppendLog(ctx context.Context, l *domain.TriggerLog) error {
	query := `
		INSERT INTO trigger_logs (id, trigger_id, contact_id, execution_id, matched_value, success, error, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		l.ID,
		l.TriggerID,
		l.ContactID,
		l.ExecutionID,
		nullString(l.MatchedValue),
		l.Success,
		nullString(l.Error),
		l.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("insert trigger log: %w", err)
	}
	return nil
}

// ListLogs возвращает журнал срабатываний триггера, новые первыми.
func (r *TriggerRepo) ListLogs(ctx context.Context, triggerID uuid.UUID, limit, offset int) ([]domain.TriggerLog, error) {
	query := `
		SELECT id, trigger_id, contact_id, execution_id, matched_value, success, error, triggered_at
		FROM trigger_logs
		WHERE trigger_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, triggerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list trigger logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.TriggerLog
	for rows.Next() {
		var l domain.TriggerLog
		var matchedValue, logError *string

		err := rows.Scan(
			&l.ID,
			&l.TriggerID,
			&l.ContactID,
			&l.ExecutionID,
			&matchedValue,
			&l.Success,
			&logError,
			&l.TriggeredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trigger log: %w", err)
		}
		if matchedValue != nil {
			l.MatchedValue = *matchedValue
		}
		if logError != nil {
			l.Error = *logError
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// --- Helpers ---

func (r *TriggerRepo) listPtr(ctx context.Context, query string, args ...any) ([]*domain.Trigger, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	var triggers []*domain.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}

// scanTrigger сканирует одну строку в Trigger.
func scanTrigger(row pgx.Row) (*domain.Trigger, error) {
	var t domain.Trigger
	var matchType, eventType, scheduleType, scheduleTime, timezone, contactFilter *string
	var conditionsJSON []byte

	err := row.Scan(
		&t.ID,
		&t.BotID,
		&t.FlowID,
		&t.Name,
		&t.Type,
		&t.IsActive,
		&t.Priority,
		&t.Keywords,
		&matchType,
		&t.CaseSensitive,
		&eventType,
		&conditionsJSON,
		&scheduleType,
		&scheduleTime,
		&timezone,
		&contactFilter,
		&t.LastTriggeredAt,
		&t.NextTriggerAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan trigger: %w", err)
	}

	if matchType != nil {
		t.MatchType = domain.MatchType(*matchType)
	}
	if eventType != nil {
		t.EventType = *eventType
	}
	if scheduleType != nil {
		t.ScheduleType = domain.ScheduleType(*scheduleType)
	}
	if scheduleTime != nil {
		t.ScheduleTime = *scheduleTime
	}
	if timezone != nil {
		t.Timezone = *timezone
	}
	if contactFilter != nil {
		t.ContactFilterType = domain.ContactFilter(*contactFilter)
	}
	if conditionsJSON != nil {
		if err := json.Unmarshal(conditionsJSON, &t.EventConditions); err != nil {
			return nil, fmt.Errorf("unmarshal event conditions: %w", err)
		}
	}
	return &t, nil
}
