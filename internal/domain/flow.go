package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NodeType — тип узла в структуре flow.
//
// Набор типов закрытый: добавление нового типа требует изменения
// валидатора, нормализатора и диспетчеризации в engine.
type NodeType string

const (
	// NodeSendMessage — отправка сообщения контакту.
	NodeSendMessage NodeType = "send_message"

	// NodeWait — приостановка flow на заданную длительность.
	NodeWait NodeType = "wait"

	// NodeCondition — ветвление по условию над state/contact.
	NodeCondition NodeType = "condition"

	// NodeWebhookAction — исходящий HTTP-запрос.
	NodeWebhookAction NodeType = "webhook_action"

	// NodeSetAttribute — запись атрибута контакта.
	NodeSetAttribute NodeType = "set_attribute"
)

// ValidNodeTypes — допустимые типы узлов.
var ValidNodeTypes = map[NodeType]bool{
	NodeSendMessage:   true,
	NodeWait:          true,
	NodeCondition:     true,
	NodeWebhookAction: true,
	NodeSetAttribute:  true,
}

// EndOfFlowIndex — сигнальное значение "конец flow" для терминальных узлов.
const EndOfFlowIndex = -1

// Flow — определение разговорного flow.
//
// Structure — упорядоченный список узлов; индекс узла и есть его
// идентичность (next/true_path/false_path ссылаются на индексы).
// Structure неизменяема для запущенных executions: обновление заменяет
// структуру целиком, executions в полёте сохраняют достигнутый индекс.
type Flow struct {
	// ID — уникальный идентификатор flow.
	ID uuid.UUID `json:"id"`

	// BotID — бот, которому принадлежит flow.
	BotID uuid.UUID `json:"bot_id"`

	// Name — имя flow.
	Name string `json:"name"`

	// Description — описание назначения.
	Description string `json:"description,omitempty"`

	// Structure — узлы flow в порядке индексов.
	Structure FlowStructure `json:"structure"`

	// IsActive — неактивные flows не запускаются триггерами.
	IsActive bool `json:"is_active"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления структуры.
	UpdatedAt time.Time `json:"updated_at"`
}

// FlowStructure — упорядоченная последовательность узлов.
// Единственная внешне персистируемая схема, которой владеет ядро:
// [{"type": "...", "config": {...}}, ...]
type FlowStructure []Node

// Node — один шаг flow: тип плюс типоспецифичная конфигурация.
//
// Config хранится как полуструктурированная map: легаси-данные могут
// не содержать части полей, поэтому типизация выполняется на чтении
// через Config* helpers, а недостающие поля заполняет нормализатор.
type Node struct {
	// Type — тип узла.
	Type NodeType `json:"type"`

	// Config — конфигурация узла.
	Config map[string]any `json:"config"`
}

// ConfigString возвращает строковое значение поля конфигурации.
func (n Node) ConfigString(key string) (string, bool) {
	v, ok := n.Config[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ConfigNumber возвращает числовое значение поля конфигурации.
// JSON-декодер даёт float64, но легаси-данные могут содержать int.
func (n Node) ConfigNumber(key string) (float64, bool) {
	switch v := n.Config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ConfigIndex возвращает индекс-ссылку (next/true_path/false_path).
// nil означает отсутствующее или null-значение — конец flow.
func (n Node) ConfigIndex(key string) *int {
	f, ok := n.ConfigNumber(key)
	if !ok {
		return nil
	}
	idx := int(f)
	return &idx
}

// ConfigMap возвращает вложенную map (content, headers, body).
func (n Node) ConfigMap(key string) map[string]any {
	if m, ok := n.Config[key].(map[string]any); ok {
		return m
	}
	return nil
}

// Clone возвращает глубокую копию узла (config копируется на один уровень,
// чего достаточно для нормализатора: вложенные значения не мутируются).
func (n Node) Clone() Node {
	cfg := make(map[string]any, len(n.Config))
	for k, v := range n.Config {
		cfg[k] = v
	}
	return Node{Type: n.Type, Config: cfg}
}
