package flow

import "github.com/shaiso/botflow/internal/domain"

// Normalize приводит структуру flow к выполнимому виду, заполняя
// недостающие поля типоспецифичными значениями по умолчанию.
//
// Нормализация идемпотентна: повторный вызов на нормализованной
// структуре ничего не меняет. Исходная структура не мутируется —
// возвращается копия.
func Normalize(structure domain.FlowStructure) domain.FlowStructure {
	out := make(domain.FlowStructure, len(structure))
	for i, node := range structure {
		out[i] = normalizeNode(node)
	}
	return out
}

// normalizeNode нормализует один узел.
//
// Узел без типа считается send_message, узел без config получает
// пустую конфигурацию — дальше оба случая добивают дефолты типа.
func normalizeNode(node domain.Node) domain.Node {
	n := node.Clone()

	if n.Type == "" {
		n.Type = domain.NodeSendMessage
	}
	if n.Config == nil {
		n.Config = make(map[string]any)
	}

	switch n.Type {
	case domain.NodeSendMessage:
		setDefault(n.Config, "message_type", "text")
		if _, ok := n.Config["content"]; !ok {
			n.Config["content"] = map[string]any{"text": ""}
		}
		setDefault(n.Config, "next", nil)

	case domain.NodeWait:
		setDefault(n.Config, "duration", float64(1))
		setDefault(n.Config, "unit", "seconds")
		setDefault(n.Config, "next", nil)

	case domain.NodeCondition:
		setDefault(n.Config, "variable", "state.variable")
		setDefault(n.Config, "operator", "==")
		setDefault(n.Config, "value", "")
		setDefault(n.Config, "true_path", nil)
		setDefault(n.Config, "false_path", nil)

	case domain.NodeWebhookAction:
		setDefault(n.Config, "url", "https://example.com/webhook")
		setDefault(n.Config, "method", "POST")
		setDefault(n.Config, "next", nil)

	case domain.NodeSetAttribute:
		setDefault(n.Config, "attribute_key", "default_key")
		setDefault(n.Config, "attribute_value", "")
		setDefault(n.Config, "next", nil)
	}

	return n
}

// setDefault записывает значение, только если ключ отсутствует.
// Явный null сохраняется: для полей-ссылок это "конец flow".
func setDefault(cfg map[string]any, key string, value any) {
	if _, ok := cfg[key]; !ok {
		cfg[key] = value
	}
}
