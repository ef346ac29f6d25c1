package engine

import (
	"context"
	"log/slog"

	"github.com/shaiso/botflow/internal/domain"
)

// execContext — состояние одного прогона engine: execution, его flow,
// нормализованная структура и контакт.
//
// Атрибуты контакта загружаются лениво при первом обращении
// (интерполяция {{contact.attribute.*}} встречается далеко не в каждом
// flow) и кэшируются на время прогона.
type execContext struct {
	execution *domain.FlowExecution
	flow      *domain.Flow
	structure domain.FlowStructure
	contact   *domain.Contact

	contacts ContactStore
	log      *slog.Logger

	attrs       map[string]string
	attrsLoaded bool
}

// attribute возвращает значение атрибута контакта, загружая кэш
// при первом обращении. Ошибка загрузки логируется, обращение
// считается неразрешённым.
func (ec *execContext) attribute(ctx context.Context, key string) (string, bool) {
	if !ec.attrsLoaded {
		attrs, err := ec.contacts.GetAttributes(ctx, ec.contact.ID)
		if err != nil {
			ec.log.Warn("failed to load contact attributes",
				"contact_id", ec.contact.ID, "error", err)
			return "", false
		}
		ec.attrs = attrs
		ec.attrsLoaded = true
	}
	v, ok := ec.attrs[key]
	return v, ok
}

// invalidateAttrs сбрасывает кэш атрибутов (после set_attribute).
func (ec *execContext) invalidateAttrs() {
	ec.attrsLoaded = false
	ec.attrs = nil
}

// state возвращает значение переменной state execution.
func (ec *execContext) state(key string) (any, bool) {
	if ec.execution.State == nil {
		return nil, false
	}
	v, ok := ec.execution.State[key]
	return v, ok
}
