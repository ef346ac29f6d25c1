package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// placeholderRe — плейсхолдер вида {{path}}. Пробелы вокруг пути
// допустимы: {{ contact.first_name }}.
var placeholderRe = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// interpolate заменяет плейсхолдеры в тексте значениями из контекста
// выполнения.
//
// Поддерживаемые пути:
//
//	contact.attribute.<key> — атрибут контакта
//	contact.<field>         — поле контакта (first_name, phone_number, ...)
//	state.<key>             — переменная state execution
//	<key>                   — короткая форма для state.<key>
//
// Неразрешённый плейсхолдер заменяется пустой строкой с warning в лог:
// сообщение с сырым {{...}} внутри хуже сообщения с пропуском.
func (ec *execContext) interpolate(ctx context.Context, text string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		path := strings.TrimSpace(placeholderRe.FindStringSubmatch(m)[1])
		v, ok := ec.resolve(ctx, path)
		if !ok {
			ec.log.Warn("unresolved placeholder",
				"execution_id", ec.execution.ID, "path", path)
			return ""
		}
		return formatValue(v)
	})
}

// resolve разрешает путь переменной в значение.
func (ec *execContext) resolve(ctx context.Context, path string) (any, bool) {
	switch {
	case strings.HasPrefix(path, "contact.attribute."):
		return resolveString(ec.attribute(ctx, strings.TrimPrefix(path, "contact.attribute.")))

	case strings.HasPrefix(path, "contact."):
		return resolveString(ec.contact.Field(strings.TrimPrefix(path, "contact.")))

	case strings.HasPrefix(path, "state."):
		return ec.state(strings.TrimPrefix(path, "state."))

	default:
		return ec.state(path)
	}
}

func resolveString(s string, ok bool) (any, bool) {
	if !ok {
		return nil, false
	}
	return s, true
}

// formatValue приводит значение к строке для подстановки в текст.
// Числа из JSON приходят как float64: целые печатаются без дробной
// части ("1234", не "1234.000000").
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
