package trigger

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/domain"
)

func testMatcher() *Matcher {
	return NewMatcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func keywordTrigger(name string, priority int, matchType domain.MatchType, caseSensitive bool, keywords ...string) *domain.Trigger {
	return &domain.Trigger{
		ID:            uuid.New(),
		Name:          name,
		Type:          domain.TriggerKeyword,
		IsActive:      true,
		Priority:      priority,
		Keywords:      keywords,
		MatchType:     matchType,
		CaseSensitive: caseSensitive,
	}
}

func TestMatchKeyword_MatchTypes(t *testing.T) {
	tests := []struct {
		name      string
		matchType domain.MatchType
		keyword   string
		message   string
		want      bool
	}{
		{"exact match", domain.MatchExact, "start", "start", true},
		{"exact mismatch on extra words", domain.MatchExact, "start", "start now", false},
		{"exact folds case", domain.MatchExact, "START", "start", true},
		{"exact trims whitespace", domain.MatchExact, "start", "  start  ", true},
		{"contains", domain.MatchContains, "help", "i need help please", true},
		{"contains mismatch", domain.MatchContains, "help", "all good", false},
		{"starts_with", domain.MatchStartsWith, "order", "order #42", true},
		{"starts_with mismatch", domain.MatchStartsWith, "order", "my order", false},
		{"ends_with", domain.MatchEndsWith, "bye", "ok bye", true},
		{"regex", domain.MatchRegex, `^\d{4}$`, "1234", true},
		{"regex mismatch", domain.MatchRegex, `^\d{4}$`, "12a4", false},
	}

	m := testMatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trg := keywordTrigger("t", 0, tt.matchType, false, tt.keyword)
			_, matched, ok := m.MatchKeyword([]*domain.Trigger{trg}, tt.message)
			if ok != tt.want {
				t.Errorf("match = %v, want %v", ok, tt.want)
			}
			if ok && matched != tt.keyword {
				t.Errorf("matched keyword %q, want %q", matched, tt.keyword)
			}
		})
	}
}

func TestMatchKeyword_CaseSensitive(t *testing.T) {
	m := testMatcher()
	trg := keywordTrigger("t", 0, domain.MatchExact, true, "Start")

	if _, _, ok := m.MatchKeyword([]*domain.Trigger{trg}, "start"); ok {
		t.Error("case sensitive trigger matched different case")
	}
	if _, _, ok := m.MatchKeyword([]*domain.Trigger{trg}, "Start"); !ok {
		t.Error("case sensitive trigger did not match same case")
	}
}

func TestMatchKeyword_PriorityOrder(t *testing.T) {
	m := testMatcher()
	low := keywordTrigger("low", 1, domain.MatchContains, false, "hello")
	high := keywordTrigger("high", 10, domain.MatchContains, false, "hello")

	// Порядок в срезе не важен, побеждает приоритет.
	got, _, ok := m.MatchKeyword([]*domain.Trigger{low, high}, "hello there")
	if !ok || got.Name != "high" {
		t.Errorf("expected high priority trigger, got %v", got)
	}
}

func TestMatchKeyword_SkipsInactiveAndNonKeyword(t *testing.T) {
	m := testMatcher()

	inactive := keywordTrigger("inactive", 10, domain.MatchContains, false, "hello")
	inactive.IsActive = false

	event := keywordTrigger("event", 20, domain.MatchContains, false, "hello")
	event.Type = domain.TriggerEvent

	if _, _, ok := m.MatchKeyword([]*domain.Trigger{inactive, event}, "hello"); ok {
		t.Error("matched inactive or non-keyword trigger")
	}
}

func TestMatchKeyword_InvalidRegexSkipped(t *testing.T) {
	m := testMatcher()
	broken := keywordTrigger("broken", 10, domain.MatchRegex, false, "([")
	fallback := keywordTrigger("fallback", 1, domain.MatchContains, false, "hi")

	got, _, ok := m.MatchKeyword([]*domain.Trigger{broken, fallback}, "hi")
	if !ok || got.Name != "fallback" {
		t.Errorf("broken regex should be skipped, got %v", got)
	}
}

func TestMatchKeyword_FirstKeywordWins(t *testing.T) {
	m := testMatcher()
	trg := keywordTrigger("t", 0, domain.MatchContains, false, "promo", "sale")

	_, matched, ok := m.MatchKeyword([]*domain.Trigger{trg}, "big sale and promo")
	if !ok || matched != "promo" {
		t.Errorf("expected first keyword promo, got %q", matched)
	}
}

func eventTrigger(eventType string, conditions map[string]any) *domain.Trigger {
	return &domain.Trigger{
		ID:              uuid.New(),
		Name:            "evt",
		Type:            domain.TriggerEvent,
		IsActive:        true,
		EventType:       eventType,
		EventConditions: conditions,
	}
}

func TestMatchEvent(t *testing.T) {
	tests := []struct {
		name      string
		trigger   *domain.Trigger
		eventType string
		eventData map[string]any
		want      bool
	}{
		{
			name:      "type match without conditions",
			trigger:   eventTrigger("order_placed", nil),
			eventType: "order_placed",
			want:      true,
		},
		{
			name:      "type mismatch",
			trigger:   eventTrigger("order_placed", nil),
			eventType: "cart_abandoned",
			want:      false,
		},
		{
			name:      "scalar condition equality",
			trigger:   eventTrigger("order_placed", map[string]any{"channel": "web"}),
			eventType: "order_placed",
			eventData: map[string]any{"channel": "web"},
			want:      true,
		},
		{
			name:      "scalar condition mismatch",
			trigger:   eventTrigger("order_placed", map[string]any{"channel": "web"}),
			eventType: "order_placed",
			eventData: map[string]any{"channel": "app"},
			want:      false,
		},
		{
			name: "operator condition greater",
			trigger: eventTrigger("order_placed", map[string]any{
				"total": map[string]any{"operator": ">", "value": float64(100)},
			}),
			eventType: "order_placed",
			eventData: map[string]any{"total": float64(150)},
			want:      true,
		},
		{
			name: "all conditions must hold",
			trigger: eventTrigger("order_placed", map[string]any{
				"channel": "web",
				"total":   map[string]any{"operator": ">", "value": float64(100)},
			}),
			eventType: "order_placed",
			eventData: map[string]any{"channel": "web", "total": float64(50)},
			want:      false,
		},
		{
			name: "in operator",
			trigger: eventTrigger("order_placed", map[string]any{
				"country": map[string]any{"operator": "in", "value": []any{"br", "pt"}},
			}),
			eventType: "order_placed",
			eventData: map[string]any{"country": "br"},
			want:      true,
		},
		{
			name: "not_in operator",
			trigger: eventTrigger("order_placed", map[string]any{
				"country": map[string]any{"operator": "not_in", "value": []any{"br", "pt"}},
			}),
			eventType: "order_placed",
			eventData: map[string]any{"country": "us"},
			want:      true,
		},
		{
			name: "missing event field fails condition",
			trigger: eventTrigger("order_placed", map[string]any{
				"total": map[string]any{"operator": ">", "value": float64(1)},
			}),
			eventType: "order_placed",
			eventData: map[string]any{},
			want:      false,
		},
		{
			name: "contains operator",
			trigger: eventTrigger("support_request", map[string]any{
				"subject": map[string]any{"operator": "contains", "value": "refund"},
			}),
			eventType: "support_request",
			eventData: map[string]any{"subject": "need a refund now"},
			want:      true,
		},
		{
			name: "starts_with operator",
			trigger: eventTrigger("support_request", map[string]any{
				"subject": map[string]any{"operator": "starts_with", "value": "urgent"},
			}),
			eventType: "support_request",
			eventData: map[string]any{"subject": "urgent: refund"},
			want:      true,
		},
		{
			name: "starts_with mismatch",
			trigger: eventTrigger("support_request", map[string]any{
				"subject": map[string]any{"operator": "starts_with", "value": "urgent"},
			}),
			eventType: "support_request",
			eventData: map[string]any{"subject": "not so urgent"},
			want:      false,
		},
		{
			name: "ends_with operator",
			trigger: eventTrigger("support_request", map[string]any{
				"email": map[string]any{"operator": "ends_with", "value": "@example.com"},
			}),
			eventType: "support_request",
			eventData: map[string]any{"email": "ana@example.com"},
			want:      true,
		},
	}

	m := testMatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.MatchEvent(tt.trigger, tt.eventType, tt.eventData)
			if got != tt.want {
				t.Errorf("MatchEvent = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchEvent_InactiveTrigger(t *testing.T) {
	m := testMatcher()
	trg := eventTrigger("order_placed", nil)
	trg.IsActive = false

	if m.MatchEvent(trg, "order_placed", nil) {
		t.Error("inactive trigger matched")
	}
}
