package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Счётчики доменной активности. Регистрируются в default registry и
// отдаются через /metrics каждого бинарника.
var (
	// ExecutionsStarted — созданные executions.
	ExecutionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botflow_executions_started_total",
		Help: "Flow executions created",
	})

	// ExecutionsCompleted — executions, дошедшие до конца flow.
	ExecutionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botflow_executions_completed_total",
		Help: "Flow executions completed",
	})

	// ExecutionsFailed — executions, завершившиеся ошибкой или отменой.
	ExecutionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botflow_executions_failed_total",
		Help: "Flow executions failed",
	})

	// NodesExecuted — выполненные узлы по типу.
	NodesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botflow_nodes_executed_total",
		Help: "Flow nodes executed by node type",
	}, []string{"node_type"})

	// TriggersFired — опубликованные запуски по типу триггера.
	TriggersFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botflow_triggers_fired_total",
		Help: "Flow launches published by trigger type",
	}, []string{"trigger_type"})
)
