package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/botflow/internal/domain"
)

// waitUnitSeconds — множители единиц длительности wait-узла.
var waitUnitSeconds = map[string]int64{
	"seconds": 1,
	"minutes": 60,
	"hours":   3600,
	"days":    86400,
}

// waitExecutor — узел wait: приостанавливает execution и планирует
// отложенное возобновление на следующем узле.
//
// Конфигурация:
//
//	{"duration": 30, "unit": "minutes", "next": 2}
type waitExecutor struct {
	scheduler TaskScheduler
}

func (x *waitExecutor) execute(ctx context.Context, ec *execContext, node domain.Node) *Result {
	duration, ok := node.ConfigNumber("duration")
	if !ok || duration <= 0 {
		return &Result{Success: false, Error: "wait node has no positive duration"}
	}

	unit, _ := node.ConfigString("unit")
	mult, ok := waitUnitSeconds[unit]
	if !ok {
		return &Result{Success: false, Error: fmt.Sprintf("unsupported wait unit %q", unit)}
	}

	delay := time.Duration(duration*float64(mult)) * time.Second

	next := node.ConfigIndex("next")
	resumeAt := domain.EndOfFlowIndex
	if next != nil {
		resumeAt = *next
	}

	taskID, err := x.scheduler.ScheduleResume(ctx, ec.execution.ID, resumeAt, delay)
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("schedule resume: %v", err)}
	}

	return &Result{
		Success:         true,
		NextNodeIndex:   next,
		ScheduledTaskID: taskID,
		Data: map[string]any{
			"delay_seconds": delay.Seconds(),
			"task_id":       taskID,
		},
	}
}
