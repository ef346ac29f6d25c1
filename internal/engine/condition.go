package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/shaiso/botflow/internal/domain"
)

// conditionExecutor — узел condition: ветвление по сравнению переменной
// со значением.
//
// Конфигурация:
//
//	{
//	    "variable": "state.user_response",
//	    "operator": "==",
//	    "value": "yes",
//	    "true_path": 3,
//	    "false_path": 5
//	}
//
// Ошибка вычисления (неразрешённая переменная, нечисловой операнд у
// числового оператора) трактуется как false с warning в лог: condition
// не роняет execution.
type conditionExecutor struct{}

func (x *conditionExecutor) execute(ctx context.Context, ec *execContext, node domain.Node) *Result {
	variable, _ := node.ConfigString("variable")
	operator, _ := node.ConfigString("operator")

	value := node.Config["value"]
	if s, ok := value.(string); ok {
		value = ec.interpolate(ctx, s)
	}

	matched := x.evaluate(ctx, ec, variable, operator, value)

	branch := "false_path"
	if matched {
		branch = "true_path"
	}

	return &Result{
		Success:       true,
		NextNodeIndex: node.ConfigIndex(branch),
		Data: map[string]any{
			"variable": variable,
			"operator": operator,
			"matched":  matched,
		},
	}
}

// evaluate вычисляет условие. Любая ошибка — false.
func (x *conditionExecutor) evaluate(ctx context.Context, ec *execContext, variable, operator string, value any) bool {
	actual, ok := ec.resolve(ctx, variable)
	if !ok {
		ec.log.Warn("condition variable not found",
			"execution_id", ec.execution.ID, "variable", variable)
		return false
	}

	switch operator {
	case "==":
		return compareEqual(actual, value)
	case "!=":
		return !compareEqual(actual, value)
	case ">", "<", ">=", "<=":
		return compareOrdered(ec, operator, actual, value)
	case "contains":
		return strings.Contains(formatValue(actual), formatValue(value))
	case "starts_with":
		return strings.HasPrefix(formatValue(actual), formatValue(value))
	case "ends_with":
		return strings.HasSuffix(formatValue(actual), formatValue(value))
	default:
		ec.log.Warn("unsupported condition operator",
			"execution_id", ec.execution.ID, "operator", operator)
		return false
	}
}

// compareEqual сравнивает численно, если обе стороны — числа
// ("5" == 5.0), иначе как строки.
func compareEqual(a, b any) bool {
	af, aok := toNumber(a)
	bf, bok := toNumber(b)
	if aok && bok {
		return af == bf
	}
	return formatValue(a) == formatValue(b)
}

// compareOrdered сравнивает по порядку. Операторы порядка определены
// только для чисел: нечисловой операнд — false.
func compareOrdered(ec *execContext, operator string, a, b any) bool {
	af, aok := toNumber(a)
	bf, bok := toNumber(b)
	if !aok || !bok {
		ec.log.Warn("ordered comparison on non-numeric operands",
			"execution_id", ec.execution.ID, "operator", operator)
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

// toNumber пытается привести значение к float64.
func toNumber(v any) (float64, bool) {
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
