package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/botflow/internal/domain"
)

// FlowRepo — репозиторий flows.
type FlowRepo struct {
	pool *pgxpool.Pool
}

// NewFlowRepo создаёт новый FlowRepo.
func NewFlowRepo(pool *pgxpool.Pool) *FlowRepo {
	return &FlowRepo{pool: pool}
}

// Create создаёт новый flow.
func (r *FlowRepo) Create(ctx context.Context, f *domain.Flow) error {
	structureJSON, err := json.Marshal(f.Structure)
	if err != nil {
		return fmt.Errorf("marshal structure: %w", err)
	}

	query := `
		INSERT INTO flows (id, bot_id, name, description, structure, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		f.ID,
		f.BotID,
		f.Name,
		nullString(f.Description),
		structureJSON,
		f.IsActive,
		f.CreatedAt,
		f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert flow: %w", err)
	}
	return nil
}

// GetFlow возвращает flow по ID.
func (r *FlowRepo) GetFlow(ctx context.Context, id uuid.UUID) (*domain.Flow, error) {
	query := `
		SELECT id, bot_id, name, description, structure, is_active, created_at, updated_at
		FROM flows
		WHERE id = $1
	`
	return scanFlow(r.pool.QueryRow(ctx, query, id))
}

// List возвращает flows бота, новые первыми.
func (r *FlowRepo) List(ctx context.Context, botID uuid.UUID, limit, offset int) ([]domain.Flow, error) {
	query := `
		SELECT id, bot_id, name, description, structure, is_active, created_at, updated_at
		FROM flows
		WHERE bot_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, botID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	var flows []domain.Flow
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, *f)
	}
	return flows, rows.Err()
}

// Update обновляет flow целиком (имя, описание, структуру, активность).
func (r *FlowRepo) Update(ctx context.Context, f *domain.Flow) error {
	structureJSON, err := json.Marshal(f.Structure)
	if err != nil {
		return fmt.Errorf("marshal structure: %w", err)
	}

	query := `
		UPDATE flows
		SET name = $2, description = $3, structure = $4, is_active = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		f.ID,
		f.Name,
		nullString(f.Description),
		structureJSON,
		f.IsActive,
		f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет flow.
func (r *FlowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanFlow сканирует одну строку в Flow.
func scanFlow(row pgx.Row) (*domain.Flow, error) {
	var f domain.Flow
	var structureJSON []byte
	var description *string

	err := row.Scan(
		&f.ID,
		&f.BotID,
		&f.Name,
		&description,
		&structureJSON,
		&f.IsActive,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan flow: %w", err)
	}

	if description != nil {
		f.Description = *description
	}
	if structureJSON != nil {
		if err := json.Unmarshal(structureJSON, &f.Structure); err != nil {
			return nil, fmt.Errorf("unmarshal structure: %w", err)
		}
	}
	return &f, nil
}
