package engine

import "errors"

// Ошибки выполнения flow.
var (
	// ErrFlowInactive — попытка запустить деактивированный flow.
	ErrFlowInactive = errors.New("flow is not active")

	// ErrExecutionFinished — операция над завершённым execution.
	ErrExecutionFinished = errors.New("execution already finished")
)
