package trigger

import "errors"

// Ошибки расписаний.
var (
	// ErrInvalidScheduleTime — schedule_time не соответствует формату
	// типа расписания.
	ErrInvalidScheduleTime = errors.New("invalid schedule time")

	// ErrUnknownScheduleType — неизвестный тип расписания.
	ErrUnknownScheduleType = errors.New("unknown schedule type")

	// ErrScheduleExhausted — у расписания нет следующего срабатывания
	// (once в прошлом).
	ErrScheduleExhausted = errors.New("schedule has no next fire time")
)
