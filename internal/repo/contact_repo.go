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

// ContactRepo — репозиторий контактов и их атрибутов.
type ContactRepo struct {
	pool *pgxpool.Pool
}

// NewContactRepo создаёт новый ContactRepo.
func NewContactRepo(pool *pgxpool.Pool) *ContactRepo {
	return &ContactRepo{pool: pool}
}

const contactColumns = `
	id, bot_id, phone_number, first_name, last_name, email, metadata, created_at, updated_at
`

// GetContact возвращает контакт по ID.
func (r *ContactRepo) GetContact(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	return scanContact(r.pool.QueryRow(ctx, query, id))
}

// GetOrCreateByPhone возвращает контакт по номеру телефона, создавая
// его при первом обращении.
//
// Upsert вместо select-then-insert: два конкурентных входящих сообщения
// от нового номера не создадут дубликат.
func (r *ContactRepo) GetOrCreateByPhone(ctx context.Context, botID uuid.UUID, phone string) (*domain.Contact, error) {
	query := `
		INSERT INTO contacts (id, bot_id, phone_number, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (bot_id, phone_number) DO UPDATE SET updated_at = now()
		RETURNING ` + contactColumns
	return scanContact(r.pool.QueryRow(ctx, query, uuid.New(), botID, phone))
}

// Update обновляет профиль контакта.
func (r *ContactRepo) Update(ctx context.Context, c *domain.Contact) error {
	metadataJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		UPDATE contacts
		SET first_name = $2, last_name = $3, email = $4, metadata = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		c.ID,
		nullString(c.FirstName),
		nullString(c.LastName),
		nullString(c.Email),
		metadataJSON,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListContacts возвращает все контакты бота.
func (r *ContactRepo) ListContacts(ctx context.Context, botID uuid.UUID) ([]*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE bot_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, botID)
}

// ListContactsCreatedSince возвращает контакты, созданные после since.
func (r *ContactRepo) ListContactsCreatedSince(ctx context.Context, botID uuid.UUID, since time.Time) ([]*domain.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE bot_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, botID, since)
}

// ListContactsActiveSince возвращает контакты с активностью flow
// после since.
func (r *ContactRepo) ListContactsActiveSince(ctx context.Context, botID uuid.UUID, since time.Time) ([]*domain.Contact, error) {
	query := `
		SELECT DISTINCT c.id, c.bot_id, c.phone_number, c.first_name, c.last_name,
		       c.email, c.metadata, c.created_at, c.updated_at
		FROM contacts c
		JOIN flow_executions e ON e.contact_id = c.id
		WHERE c.bot_id = $1 AND COALESCE(e.last_executed_at, e.started_at) >= $2
	`
	return r.list(ctx, query, botID, since)
}

// GetAttributes возвращает все атрибуты контакта.
func (r *ContactRepo) GetAttributes(ctx context.Context, contactID uuid.UUID) (map[string]string, error) {
	query := `SELECT key, value FROM contact_attributes WHERE contact_id = $1`
	rows, err := r.pool.Query(ctx, query, contactID)
	if err != nil {
		return nil, fmt.Errorf("list attributes: %w", err)
	}
	defer rows.Close()

	attrs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		attrs[key] = value
	}
	return attrs, rows.Err()
}

// SetAttribute записывает атрибут контакта (upsert по contact_id + key).
func (r *ContactRepo) SetAttribute(ctx context.Context, contactID uuid.UUID, key, value string, valueType domain.AttributeValueType) error {
	query := `
		INSERT INTO contact_attributes (id, contact_id, key, value, value_type, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (contact_id, key)
		DO UPDATE SET value = $4, value_type = $5, updated_at = now()
	`
	_, err := r.pool.Exec(ctx, query, uuid.New(), contactID, key, value, valueType)
	if err != nil {
		return fmt.Errorf("set attribute: %w", err)
	}
	return nil
}

// --- Helpers ---

func (r *ContactRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Contact, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// scanContact сканирует одну строку в Contact.
func scanContact(row pgx.Row) (*domain.Contact, error) {
	var c domain.Contact
	var firstName, lastName, email *string
	var metadataJSON []byte

	err := row.Scan(
		&c.ID,
		&c.BotID,
		&c.PhoneNumber,
		&firstName,
		&lastName,
		&email,
		&metadataJSON,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan contact: %w", err)
	}

	if firstName != nil {
		c.FirstName = *firstName
	}
	if lastName != nil {
		c.LastName = *lastName
	}
	if email != nil {
		c.Email = *email
	}
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &c, nil
}
