package domain

// ExecutionStatus — статус выполнения flow execution.
//
// Жизненный цикл:
//
//	running → running (синхронная цепочка узлов)
//	        → waiting (узел запланировал отложенное возобновление)
//	        → completed
//	        → failed
//	waiting → running (resume или пользовательский ввод) → {...}
type ExecutionStatus string

const (
	// ExecutionRunning — execution выполняется.
	ExecutionRunning ExecutionStatus = "running"

	// ExecutionWaiting — execution приостановлен (wait-узел), ждёт resume.
	ExecutionWaiting ExecutionStatus = "waiting"

	// ExecutionCompleted — execution успешно завершён.
	ExecutionCompleted ExecutionStatus = "completed"

	// ExecutionFailed — execution завершился с ошибкой (или отменён).
	ExecutionFailed ExecutionStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed:
		return true
	default:
		return false
	}
}

// IsActive возвращает true, если execution занимает слот контакта
// (инвариант: не более одного активного execution на контакт).
func (s ExecutionStatus) IsActive() bool {
	switch s {
	case ExecutionRunning, ExecutionWaiting:
		return true
	default:
		return false
	}
}

// LogAction — действие, записанное в журнал выполнения узла.
type LogAction string

const (
	// LogActionExecuted — узел выполнен успешно.
	LogActionExecuted LogAction = "executed"

	// LogActionFailed — выполнение узла завершилось ошибкой.
	LogActionFailed LogAction = "failed"
)

// TriggerType — тип автоматизационного триггера.
type TriggerType string

const (
	// TriggerKeyword — срабатывает на входящее сообщение по ключевым словам.
	TriggerKeyword TriggerType = "keyword"

	// TriggerEvent — срабатывает на системное событие.
	TriggerEvent TriggerType = "event"

	// TriggerSchedule — срабатывает по расписанию.
	TriggerSchedule TriggerType = "schedule"
)

// MatchType — способ сопоставления сообщения с ключевыми словами.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "starts_with"
	MatchEndsWith   MatchType = "ends_with"
	MatchRegex      MatchType = "regex"
)

// ScheduleType — тип расписания для schedule-триггеров.
type ScheduleType string

const (
	// ScheduleOnce — однократно, в абсолютный момент времени (RFC 3339).
	ScheduleOnce ScheduleType = "once"

	// ScheduleDaily — каждый день в "HH:MM".
	ScheduleDaily ScheduleType = "daily"

	// ScheduleWeekly — еженедельно, формат "monday:09:00".
	ScheduleWeekly ScheduleType = "weekly"

	// ScheduleMonthly — ежемесячно, формат "DD:HH:MM".
	ScheduleMonthly ScheduleType = "monthly"

	// ScheduleCron — по cron-выражению.
	ScheduleCron ScheduleType = "cron"
)

// ContactFilter — область контактов для event/schedule триггеров.
type ContactFilter string

const (
	// ContactFilterAll — все контакты бота.
	ContactFilterAll ContactFilter = "all"

	// ContactFilterSpecific — явный список contact_ids из контекста события.
	ContactFilterSpecific ContactFilter = "specific"

	// ContactFilterNew — контакты, созданные за последние 24 часа.
	ContactFilterNew ContactFilter = "new_contacts"

	// ContactFilterActive — контакты с активностью flow за последние 7 дней.
	ContactFilterActive ContactFilter = "active_contacts"
)
