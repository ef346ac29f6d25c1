package flow

import (
	"errors"
	"testing"

	"github.com/shaiso/botflow/internal/domain"
)

func sendNode(next any) domain.Node {
	return domain.Node{
		Type: domain.NodeSendMessage,
		Config: map[string]any{
			"message_type": "text",
			"content":      map[string]any{"text": "hi"},
			"next":         next,
		},
	}
}

func TestValidate_MinimalFlow(t *testing.T) {
	structure := domain.FlowStructure{sendNode(nil)}

	if errs := Validate(structure); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestValidate_EmptyStructure(t *testing.T) {
	errs := Validate(domain.FlowStructure{})

	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if !errors.Is(errs[0], ErrEmptyStructure) {
		t.Errorf("expected ErrEmptyStructure, got %v", errs[0])
	}
}

func TestValidate_UnknownNodeType(t *testing.T) {
	structure := domain.FlowStructure{
		{Type: "teleport", Config: map[string]any{}},
	}

	errs := Validate(structure)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if !errors.Is(errs[0], ErrUnknownNodeType) {
		t.Errorf("expected ErrUnknownNodeType, got %v", errs[0])
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		node    domain.Node
		wantErr error
		field   string
	}{
		{
			name:    "send_message without content",
			node:    domain.Node{Type: domain.NodeSendMessage, Config: map[string]any{}},
			wantErr: ErrMissingField,
			field:   "content",
		},
		{
			name:    "send_message without message_type",
			node:    domain.Node{Type: domain.NodeSendMessage, Config: map[string]any{"content": "hi", "next": nil}},
			wantErr: ErrMissingField,
			field:   "message_type",
		},
		{
			name:    "send_message with bad message_type",
			node:    domain.Node{Type: domain.NodeSendMessage, Config: map[string]any{"message_type": "carrier_pigeon", "content": "hi", "next": nil}},
			wantErr: ErrInvalidMessageType,
			field:   "message_type",
		},
		{
			name:    "send_message without next",
			node:    domain.Node{Type: domain.NodeSendMessage, Config: map[string]any{"message_type": "text", "content": "hi"}},
			wantErr: ErrMissingField,
			field:   "next",
		},
		{
			name:    "wait without duration",
			node:    domain.Node{Type: domain.NodeWait, Config: map[string]any{"unit": "seconds"}},
			wantErr: ErrMissingField,
			field:   "duration",
		},
		{
			name:    "wait with negative duration",
			node:    domain.Node{Type: domain.NodeWait, Config: map[string]any{"duration": float64(-5), "unit": "seconds"}},
			wantErr: ErrMissingField,
			field:   "duration",
		},
		{
			name:    "wait with bad unit",
			node:    domain.Node{Type: domain.NodeWait, Config: map[string]any{"duration": float64(5), "unit": "fortnights"}},
			wantErr: ErrInvalidUnit,
			field:   "unit",
		},
		{
			name:    "wait without next",
			node:    domain.Node{Type: domain.NodeWait, Config: map[string]any{"duration": float64(5), "unit": "seconds"}},
			wantErr: ErrMissingField,
			field:   "next",
		},
		{
			name:    "condition without variable",
			node:    domain.Node{Type: domain.NodeCondition, Config: map[string]any{"operator": "==", "value": "yes"}},
			wantErr: ErrMissingField,
			field:   "variable",
		},
		{
			name:    "condition with bad operator",
			node:    domain.Node{Type: domain.NodeCondition, Config: map[string]any{"variable": "state.x", "operator": "~=", "value": "yes"}},
			wantErr: ErrInvalidOperator,
			field:   "operator",
		},
		{
			name:    "condition without value",
			node:    domain.Node{Type: domain.NodeCondition, Config: map[string]any{"variable": "state.x", "operator": "=="}},
			wantErr: ErrMissingField,
			field:   "value",
		},
		{
			name:    "condition without true_path",
			node:    domain.Node{Type: domain.NodeCondition, Config: map[string]any{"variable": "state.x", "operator": "==", "value": "yes", "false_path": nil}},
			wantErr: ErrMissingField,
			field:   "true_path",
		},
		{
			name:    "condition without false_path",
			node:    domain.Node{Type: domain.NodeCondition, Config: map[string]any{"variable": "state.x", "operator": "==", "value": "yes", "true_path": nil}},
			wantErr: ErrMissingField,
			field:   "false_path",
		},
		{
			name:    "webhook without url",
			node:    domain.Node{Type: domain.NodeWebhookAction, Config: map[string]any{"method": "POST"}},
			wantErr: ErrMissingField,
			field:   "url",
		},
		{
			name:    "webhook with bad method",
			node:    domain.Node{Type: domain.NodeWebhookAction, Config: map[string]any{"url": "https://x.test", "method": "FETCH"}},
			wantErr: ErrInvalidMethod,
			field:   "method",
		},
		{
			name:    "webhook with non-http url",
			node:    domain.Node{Type: domain.NodeWebhookAction, Config: map[string]any{"url": "ftp://files.test/x", "method": "POST", "next": nil}},
			wantErr: ErrInvalidURL,
			field:   "url",
		},
		{
			name:    "webhook without method",
			node:    domain.Node{Type: domain.NodeWebhookAction, Config: map[string]any{"url": "https://x.test", "next": nil}},
			wantErr: ErrMissingField,
			field:   "method",
		},
		{
			name:    "webhook without next",
			node:    domain.Node{Type: domain.NodeWebhookAction, Config: map[string]any{"url": "https://x.test", "method": "POST"}},
			wantErr: ErrMissingField,
			field:   "next",
		},
		{
			name:    "set_attribute without key",
			node:    domain.Node{Type: domain.NodeSetAttribute, Config: map[string]any{"attribute_value": "vip"}},
			wantErr: ErrMissingField,
			field:   "attribute_key",
		},
		{
			name:    "set_attribute without value",
			node:    domain.Node{Type: domain.NodeSetAttribute, Config: map[string]any{"attribute_key": "segment", "next": nil}},
			wantErr: ErrMissingField,
			field:   "attribute_value",
		},
		{
			name:    "set_attribute with non-string value",
			node:    domain.Node{Type: domain.NodeSetAttribute, Config: map[string]any{"attribute_key": "segment", "attribute_value": float64(7), "next": nil}},
			wantErr: ErrInvalidValue,
			field:   "attribute_value",
		},
		{
			name:    "set_attribute with bad value_type",
			node:    domain.Node{Type: domain.NodeSetAttribute, Config: map[string]any{"attribute_key": "segment", "attribute_value": "vip", "value_type": "binary", "next": nil}},
			wantErr: ErrInvalidValueType,
			field:   "value_type",
		},
		{
			name:    "set_attribute without next",
			node:    domain.Node{Type: domain.NodeSetAttribute, Config: map[string]any{"attribute_key": "segment", "attribute_value": "vip"}},
			wantErr: ErrMissingField,
			field:   "next",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(domain.FlowStructure{tt.node})
			if len(errs) == 0 {
				t.Fatal("expected validation errors, got none")
			}

			found := false
			for _, err := range errs {
				if errors.Is(err, tt.wantErr) && err.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error %v on field %q, got %v", tt.wantErr, tt.field, errs)
			}
		})
	}
}

func TestValidate_IndexOutOfRange(t *testing.T) {
	structure := domain.FlowStructure{sendNode(float64(7))}

	errs := Validate(structure)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if !errors.Is(errs[0], ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", errs[0])
	}
}

func TestValidate_ConditionBranchesOutOfRange(t *testing.T) {
	structure := domain.FlowStructure{
		{
			Type: domain.NodeCondition,
			Config: map[string]any{
				"variable":   "state.x",
				"operator":   "==",
				"value":      "yes",
				"true_path":  float64(5),
				"false_path": nil,
			},
		},
	}

	errs := Validate(structure)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if errs[0].Field != "true_path" {
		t.Errorf("expected error on true_path, got field %q", errs[0].Field)
	}
}

func TestValidate_TwoNodeCycle(t *testing.T) {
	structure := domain.FlowStructure{
		sendNode(float64(1)),
		sendNode(float64(0)),
	}

	errs := Validate(structure)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if !errors.Is(errs[0], ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", errs[0])
	}
}

func TestValidate_SelfLoop(t *testing.T) {
	structure := domain.FlowStructure{sendNode(float64(0))}

	errs := Validate(structure)
	if len(errs) != 1 || !errors.Is(errs[0], ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", errs)
	}
}

func TestValidate_BranchingAcyclic(t *testing.T) {
	// 0 → {1, 2} → конец: ромб без обратных рёбер.
	structure := domain.FlowStructure{
		{
			Type: domain.NodeCondition,
			Config: map[string]any{
				"variable":   "state.answer",
				"operator":   "==",
				"value":      "yes",
				"true_path":  float64(1),
				"false_path": float64(2),
			},
		},
		sendNode(nil),
		sendNode(nil),
	}

	if errs := Validate(structure); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	structure := domain.FlowStructure{
		{Type: domain.NodeWait, Config: map[string]any{}},
		{Type: "teleport", Config: map[string]any{}},
	}

	errs := Validate(structure)
	if len(errs) < 3 {
		t.Fatalf("expected at least 3 errors (duration, unit, type), got %d: %v", len(errs), errs)
	}
}
