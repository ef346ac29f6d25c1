package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shaiso/botflow/internal/domain"
)

func waitNode(duration float64, unit string) domain.Node {
	return domain.Node{
		Type: domain.NodeWait,
		Config: map[string]any{
			"duration": duration,
			"unit":     unit,
			"next":     float64(1),
		},
	}
}

func TestWaitExecutor_UnitConversion(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		unit     string
		want     time.Duration
	}{
		{"seconds", 45, "seconds", 45 * time.Second},
		{"minutes", 2, "minutes", 120 * time.Second},
		{"hours", 3, "hours", 3 * time.Hour},
		{"days", 1, "days", 24 * time.Hour},
		{"fractional minutes", 1.5, "minutes", 90 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduler := &fakeScheduler{}
			x := &waitExecutor{scheduler: scheduler}
			ec := newExecContext(nil, nil)

			res := x.execute(context.Background(), ec, waitNode(tt.duration, tt.unit))
			if !res.Success {
				t.Fatalf("unexpected failure: %s", res.Error)
			}

			if len(scheduler.scheduled) != 1 {
				t.Fatalf("expected 1 scheduled task, got %d", len(scheduler.scheduled))
			}
			if got := scheduler.scheduled[0].delay; got != tt.want {
				t.Errorf("expected delay %v, got %v", tt.want, got)
			}
			if scheduler.scheduled[0].nextNodeIndex != 1 {
				t.Errorf("expected resume at node 1, got %d", scheduler.scheduled[0].nextNodeIndex)
			}
		})
	}
}

func TestWaitExecutor_UnsupportedUnit(t *testing.T) {
	scheduler := &fakeScheduler{}
	x := &waitExecutor{scheduler: scheduler}

	res := x.execute(context.Background(), newExecContext(nil, nil), waitNode(5, "fortnights"))
	if res.Success {
		t.Fatal("expected failure for unsupported unit")
	}
	if len(scheduler.scheduled) != 0 {
		t.Errorf("expected no scheduled tasks, got %d", len(scheduler.scheduled))
	}
}

func TestWaitExecutor_NonPositiveDuration(t *testing.T) {
	scheduler := &fakeScheduler{}
	x := &waitExecutor{scheduler: scheduler}

	res := x.execute(context.Background(), newExecContext(nil, nil), waitNode(0, "seconds"))
	if res.Success {
		t.Fatal("expected failure for zero duration")
	}
	if len(scheduler.scheduled) != 0 {
		t.Errorf("expected no scheduled tasks, got %d", len(scheduler.scheduled))
	}
}
