package flow

import (
	"errors"
	"strconv"
)

// Ошибки валидации структуры flow.
var (
	// ErrEmptyStructure — flow не содержит узлов.
	ErrEmptyStructure = errors.New("flow structure has no nodes")

	// ErrUnknownNodeType — неизвестный тип узла.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrMissingField — отсутствует обязательное поле конфигурации.
	ErrMissingField = errors.New("missing required config field")

	// ErrIndexOutOfRange — индекс-ссылка указывает за пределы структуры.
	ErrIndexOutOfRange = errors.New("node index out of range")

	// ErrCycle — обнаружен цикл по next/true_path/false_path.
	ErrCycle = errors.New("cycle detected in flow structure")

	// ErrInvalidOperator — неподдерживаемый оператор condition-узла.
	ErrInvalidOperator = errors.New("invalid condition operator")

	// ErrInvalidUnit — неподдерживаемая единица длительности wait-узла.
	ErrInvalidUnit = errors.New("invalid wait unit")

	// ErrInvalidMethod — неподдерживаемый HTTP-метод webhook-узла.
	ErrInvalidMethod = errors.New("invalid webhook method")

	// ErrInvalidMessageType — неподдерживаемый тип сообщения
	// send_message-узла.
	ErrInvalidMessageType = errors.New("invalid message type")

	// ErrInvalidURL — url webhook-узла не является http/https-адресом.
	ErrInvalidURL = errors.New("invalid webhook url")

	// ErrInvalidValue — attribute_value set_attribute-узла не строка.
	ErrInvalidValue = errors.New("invalid attribute value")

	// ErrInvalidValueType — неподдерживаемый value_type
	// set_attribute-узла.
	ErrInvalidValueType = errors.New("invalid attribute value type")
)

// ValidationError — ошибка валидации с контекстом узла.
type ValidationError struct {
	NodeIndex int    // индекс узла, где произошла ошибка
	Field     string // поле, вызвавшее ошибку
	Message   string // описание ошибки
	Err       error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeIndex >= 0 {
		return "node " + strconv.Itoa(e.NodeIndex) + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(nodeIndex int, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeIndex: nodeIndex,
		Field:     field,
		Message:   message,
		Err:       err,
	}
}
