package flow

import (
	"fmt"
	"strings"

	"github.com/shaiso/botflow/internal/domain"
)

// ValidMessageTypes — поддерживаемые типы сообщений send_message-узлов.
var ValidMessageTypes = map[string]bool{
	"text":        true,
	"template":    true,
	"media":       true,
	"interactive": true,
}

// ValidOperators — поддерживаемые операторы condition-узлов.
var ValidOperators = map[string]bool{
	"==":          true,
	"!=":          true,
	">":           true,
	"<":           true,
	">=":          true,
	"<=":          true,
	"contains":    true,
	"starts_with": true,
	"ends_with":   true,
}

// ValidWaitUnits — поддерживаемые единицы длительности wait-узлов.
var ValidWaitUnits = map[string]bool{
	"seconds": true,
	"minutes": true,
	"hours":   true,
	"days":    true,
}

// ValidWebhookMethods — поддерживаемые HTTP-методы webhook-узлов.
var ValidWebhookMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
}

// Validate проверяет структуру flow перед сохранением.
//
// Возвращает все найденные ошибки, а не первую: API отдаёт автору
// flow полный список проблем за один запрос. Пустой срез означает,
// что структура валидна.
func Validate(structure domain.FlowStructure) []*ValidationError {
	var errs []*ValidationError

	if len(structure) == 0 {
		errs = append(errs, NewValidationError(-1, "structure", "flow structure has no nodes", ErrEmptyStructure))
		return errs
	}

	for i, node := range structure {
		errs = append(errs, validateNode(i, node, len(structure))...)
	}

	if err := detectCycle(structure); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// validateNode проверяет тип, обязательные поля и индекс-ссылки одного узла.
func validateNode(idx int, node domain.Node, total int) []*ValidationError {
	var errs []*ValidationError

	if !domain.ValidNodeTypes[node.Type] {
		errs = append(errs, NewValidationError(idx, "type",
			fmt.Sprintf("unknown node type %q", node.Type), ErrUnknownNodeType))
		return errs
	}

	switch node.Type {
	case domain.NodeSendMessage:
		if mt, ok := node.ConfigString("message_type"); !ok {
			errs = append(errs, missingField(idx, "message_type"))
		} else if !ValidMessageTypes[mt] {
			errs = append(errs, NewValidationError(idx, "message_type",
				fmt.Sprintf("invalid message type %q", mt), ErrInvalidMessageType))
		}
		if _, ok := node.Config["content"]; !ok {
			errs = append(errs, missingField(idx, "content"))
		}

	case domain.NodeWait:
		if d, ok := node.ConfigNumber("duration"); !ok {
			errs = append(errs, missingField(idx, "duration"))
		} else if d <= 0 {
			errs = append(errs, NewValidationError(idx, "duration",
				"wait duration must be positive", ErrMissingField))
		}
		if unit, ok := node.ConfigString("unit"); !ok {
			errs = append(errs, missingField(idx, "unit"))
		} else if !ValidWaitUnits[unit] {
			errs = append(errs, NewValidationError(idx, "unit",
				fmt.Sprintf("invalid wait unit %q", unit), ErrInvalidUnit))
		}

	case domain.NodeCondition:
		if v, ok := node.ConfigString("variable"); !ok || v == "" {
			errs = append(errs, missingField(idx, "variable"))
		}
		if op, ok := node.ConfigString("operator"); !ok {
			errs = append(errs, missingField(idx, "operator"))
		} else if !ValidOperators[op] {
			errs = append(errs, NewValidationError(idx, "operator",
				fmt.Sprintf("invalid condition operator %q", op), ErrInvalidOperator))
		}
		if _, ok := node.Config["value"]; !ok {
			errs = append(errs, missingField(idx, "value"))
		}

	case domain.NodeWebhookAction:
		if u, ok := node.ConfigString("url"); !ok || u == "" {
			errs = append(errs, missingField(idx, "url"))
		} else if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, NewValidationError(idx, "url",
				fmt.Sprintf("url %q is not an http or https URL", u), ErrInvalidURL))
		}
		if method, ok := node.ConfigString("method"); !ok {
			errs = append(errs, missingField(idx, "method"))
		} else if !ValidWebhookMethods[method] {
			errs = append(errs, NewValidationError(idx, "method",
				fmt.Sprintf("invalid webhook method %q", method), ErrInvalidMethod))
		}

	case domain.NodeSetAttribute:
		if k, ok := node.ConfigString("attribute_key"); !ok || k == "" {
			errs = append(errs, missingField(idx, "attribute_key"))
		}
		if raw, ok := node.Config["attribute_value"]; !ok {
			errs = append(errs, missingField(idx, "attribute_value"))
		} else if _, isString := raw.(string); !isString {
			errs = append(errs, NewValidationError(idx, "attribute_value",
				"attribute_value must be a string", ErrInvalidValue))
		}
		if vt, ok := node.ConfigString("value_type"); ok && !domain.ValidAttributeValueTypes[domain.AttributeValueType(vt)] {
			errs = append(errs, NewValidationError(idx, "value_type",
				fmt.Sprintf("invalid value type %q", vt), ErrInvalidValueType))
		}
	}

	// Поля-ссылки обязательны: автор явно пишет null для конца flow,
	// отсутствие поля считается недописанным узлом.
	for _, field := range indexFields(node.Type) {
		if _, present := node.Config[field]; !present {
			errs = append(errs, missingField(idx, field))
			continue
		}
		if node.Config[field] == nil {
			continue // null — конец flow
		}
		ref := node.ConfigIndex(field)
		if ref == nil || *ref < 0 || *ref >= total {
			errs = append(errs, NewValidationError(idx, field,
				fmt.Sprintf("%s points outside the structure", field), ErrIndexOutOfRange))
		}
	}

	return errs
}

// indexFields возвращает имена полей-ссылок для типа узла.
func indexFields(t domain.NodeType) []string {
	if t == domain.NodeCondition {
		return []string{"true_path", "false_path"}
	}
	return []string{"next"}
}

// detectCycle ищет цикл по рёбрам next/true_path/false_path.
//
// DFS со стеком рекурсии: узел в стеке, достижимый повторно, образует
// цикл. Flow с wait-узлами внутри цикла формально корректен для
// re-engagement сценариев, но движок без лимита итераций такой flow
// не завершит, поэтому циклы отклоняются целиком.
func detectCycle(structure domain.FlowStructure) *ValidationError {
	const (
		white = 0 // не посещён
		grey  = 1 // в текущем пути
		black = 2 // обработан
	)

	color := make([]int, len(structure))

	var visit func(i int) int
	visit = func(i int) int {
		color[i] = grey
		for _, field := range indexFields(structure[i].Type) {
			ref := structure[i].ConfigIndex(field)
			if ref == nil || *ref < 0 || *ref >= len(structure) {
				continue
			}
			switch color[*ref] {
			case grey:
				return *ref
			case white:
				if at := visit(*ref); at >= 0 {
					return at
				}
			}
		}
		color[i] = black
		return -1
	}

	for i := range structure {
		if color[i] == white {
			if at := visit(i); at >= 0 {
				return NewValidationError(at, "",
					"cycle detected in flow structure", ErrCycle)
			}
		}
	}

	return nil
}

func missingField(idx int, field string) *ValidationError {
	return NewValidationError(idx, field,
		fmt.Sprintf("missing required config field %q", field), ErrMissingField)
}
