package domain

import (
	"time"

	"github.com/google/uuid"
)

// Contact — конечный пользователь, с которым ведётся диалог.
type Contact struct {
	// ID — уникальный идентификатор контакта.
	ID uuid.UUID `json:"id"`

	// BotID — бот, которому принадлежит контакт.
	BotID uuid.UUID `json:"bot_id"`

	// PhoneNumber — номер телефона (уникален в рамках бота).
	PhoneNumber string `json:"phone_number"`

	// FirstName — имя.
	FirstName string `json:"first_name,omitempty"`

	// LastName — фамилия.
	LastName string `json:"last_name,omitempty"`

	// Email — адрес электронной почты.
	Email string `json:"email,omitempty"`

	// Metadata — произвольные данные контакта.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// Field возвращает строковое значение именованного поля контакта
// для интерполяции {{contact.<field>}} и condition-узлов.
// Неизвестное поле — пустая строка и false.
func (c *Contact) Field(name string) (string, bool) {
	switch name {
	case "phone_number", "phone":
		return c.PhoneNumber, true
	case "first_name":
		return c.FirstName, true
	case "last_name":
		return c.LastName, true
	case "email":
		return c.Email, true
	case "id":
		return c.ID.String(), true
	default:
		return "", false
	}
}

// AttributeValueType — тип значения атрибута контакта.
type AttributeValueType string

const (
	AttributeString  AttributeValueType = "string"
	AttributeNumber  AttributeValueType = "number"
	AttributeBoolean AttributeValueType = "boolean"
	AttributeJSON    AttributeValueType = "json"
)

// ValidAttributeValueTypes — допустимые типы значений атрибутов.
var ValidAttributeValueTypes = map[AttributeValueType]bool{
	AttributeString:  true,
	AttributeNumber:  true,
	AttributeBoolean: true,
	AttributeJSON:    true,
}

// ContactAttribute — пользовательский атрибут контакта,
// записываемый set_attribute-узлами.
type ContactAttribute struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// ContactID — контакт-владелец.
	ContactID uuid.UUID `json:"contact_id"`

	// Key — ключ атрибута (уникален в рамках контакта).
	Key string `json:"key"`

	// Value — значение (всегда строка; интерпретация по ValueType).
	Value string `json:"value"`

	// ValueType — тип значения.
	ValueType AttributeValueType `json:"value_type"`

	// UpdatedAt — время последней записи.
	UpdatedAt time.Time `json:"updated_at"`
}
