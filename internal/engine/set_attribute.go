package engine

import (
	"context"
	"fmt"

	"github.com/shaiso/botflow/internal/domain"
)

// setAttributeExecutor — узел set_attribute: запись атрибута контакта.
//
// Конфигурация:
//
//	{
//	    "attribute_key": "segment",
//	    "attribute_value": "vip",
//	    "value_type": "string",
//	    "next": 2
//	}
//
// Записанное значение зеркалируется в state под ключом
// "contact.<key>", чтобы последующие condition-узлы видели его без
// обращения к хранилищу.
type setAttributeExecutor struct {
	contacts ContactStore
}

func (x *setAttributeExecutor) execute(ctx context.Context, ec *execContext, node domain.Node) *Result {
	key, _ := node.ConfigString("attribute_key")
	if key == "" {
		return &Result{Success: false, Error: "set_attribute node has no attribute_key"}
	}

	rawValue, _ := node.ConfigString("attribute_value")
	value := ec.interpolate(ctx, rawValue)

	valueType := domain.AttributeString
	if vt, ok := node.ConfigString("value_type"); ok && vt != "" {
		valueType = domain.AttributeValueType(vt)
		if !domain.ValidAttributeValueTypes[valueType] {
			return &Result{Success: false, Error: fmt.Sprintf("invalid value type %q", vt)}
		}
	}

	if err := x.contacts.SetAttribute(ctx, ec.contact.ID, key, value, valueType); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("set attribute: %v", err)}
	}

	ec.execution.SetState("contact."+key, value)
	ec.invalidateAttrs()

	return &Result{
		Success:       true,
		NextNodeIndex: node.ConfigIndex("next"),
		Data: map[string]any{
			"attribute_key":   key,
			"attribute_value": value,
		},
	}
}
