package trigger

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shaiso/botflow/internal/domain"
)

// Matcher сопоставляет входящие сообщения и события с триггерами.
type Matcher struct {
	log *slog.Logger
}

// NewMatcher создаёт Matcher.
func NewMatcher(log *slog.Logger) *Matcher {
	return &Matcher{log: log}
}

// MatchKeyword находит первый keyword-триггер, совпавший с сообщением.
//
// Триггеры проверяются в порядке убывания приоритета, побеждает первое
// совпадение. Возвращает триггер и совпавшее ключевое слово.
// Невалидное regex-выражение пропускается с warning: одно сломанное
// правило не должно отключать остальные.
func (m *Matcher) MatchKeyword(triggers []*domain.Trigger, message string) (*domain.Trigger, string, bool) {
	ordered := make([]*domain.Trigger, 0, len(triggers))
	for _, t := range triggers {
		if t.IsActive && t.Type == domain.TriggerKeyword {
			ordered = append(ordered, t)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	for _, t := range ordered {
		if keyword, ok := m.matchTrigger(t, message); ok {
			return t, keyword, true
		}
	}
	return nil, "", false
}

// matchTrigger проверяет сообщение против ключевых слов одного триггера.
func (m *Matcher) matchTrigger(t *domain.Trigger, message string) (string, bool) {
	msg := strings.TrimSpace(message)
	if !t.CaseSensitive {
		msg = strings.ToLower(msg)
	}

	for _, keyword := range t.Keywords {
		kw := keyword
		if !t.CaseSensitive {
			kw = strings.ToLower(kw)
		}

		switch t.MatchType {
		case domain.MatchExact:
			if msg == kw {
				return keyword, true
			}
		case domain.MatchContains:
			if strings.Contains(msg, kw) {
				return keyword, true
			}
		case domain.MatchStartsWith:
			if strings.HasPrefix(msg, kw) {
				return keyword, true
			}
		case domain.MatchEndsWith:
			if strings.HasSuffix(msg, kw) {
				return keyword, true
			}
		case domain.MatchRegex:
			re, err := regexp.Compile(kw)
			if err != nil {
				m.log.Warn("invalid trigger regex, skipping keyword",
					"trigger_id", t.ID, "pattern", keyword, "error", err)
				continue
			}
			if re.MatchString(msg) {
				return keyword, true
			}
		default:
			m.log.Warn("unknown match type",
				"trigger_id", t.ID, "match_type", t.MatchType)
			return "", false
		}
	}
	return "", false
}

// MatchEvent проверяет, подходит ли событие под event-триггер.
//
// Тип события должен совпасть, все условия из event_conditions должны
// выполниться (AND). Условие — либо скалярное значение (равенство),
// либо map {"operator": ..., "value": ...}.
func (m *Matcher) MatchEvent(t *domain.Trigger, eventType string, eventData map[string]any) bool {
	if !t.IsActive || t.Type != domain.TriggerEvent || t.EventType != eventType {
		return false
	}

	for key, cond := range t.EventConditions {
		actual, ok := eventData[key]
		if !ok {
			return false
		}
		if !m.matchCondition(t, actual, cond) {
			return false
		}
	}
	return true
}

// matchCondition проверяет одно условие события.
func (m *Matcher) matchCondition(t *domain.Trigger, actual, cond any) bool {
	spec, ok := cond.(map[string]any)
	if !ok {
		return equalValues(actual, cond)
	}

	operator, _ := spec["operator"].(string)
	expected := spec["value"]

	switch operator {
	case "", "==":
		return equalValues(actual, expected)
	case "!=":
		return !equalValues(actual, expected)
	case ">", "<", ">=", "<=":
		return orderedValues(operator, actual, expected)
	case "contains":
		return strings.Contains(stringify(actual), stringify(expected))
	case "starts_with":
		return strings.HasPrefix(stringify(actual), stringify(expected))
	case "ends_with":
		return strings.HasSuffix(stringify(actual), stringify(expected))
	case "in":
		return inList(actual, expected)
	case "not_in":
		return !inList(actual, expected)
	default:
		m.log.Warn("unknown event condition operator",
			"trigger_id", t.ID, "operator", operator)
		return false
	}
}

// inList проверяет вхождение значения в список.
func inList(actual, list any) bool {
	items, ok := list.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if equalValues(actual, item) {
			return true
		}
	}
	return false
}

// equalValues сравнивает численно, если обе стороны — числа,
// иначе как строки.
func equalValues(a, b any) bool {
	af, aok := parseNumber(a)
	bf, bok := parseNumber(b)
	if aok && bok {
		return af == bf
	}
	return stringify(a) == stringify(b)
}

// orderedValues сравнивает по порядку, только числа.
func orderedValues(operator string, a, b any) bool {
	af, aok := parseNumber(a)
	bf, bok := parseNumber(b)
	if !aok || !bok {
		return false
	}
	switch operator {
	case ">":
		return af > bf
	case "<":
		return af < bf
	case ">=":
		return af >= bf
	default:
		return af <= bf
	}
}

func parseNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
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
		return ""
	}
}
