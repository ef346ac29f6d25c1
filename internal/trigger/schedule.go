package trigger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/botflow/internal/domain"
)

// cronParser — парсер cron-выражений (5 полей, без секунд).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// weekdays — дни недели в schedule_time weekly-расписаний.
var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// NextFireTime вычисляет следующее срабатывание schedule-триггера
// строго после from. Результат в UTC.
//
// schedule_time интерпретируется в timezone триггера; невалидная зона —
// fallback на UTC.
//
// Форматы schedule_time:
//
//	once:    RFC 3339 либо "2006-01-02 15:04"
//	daily:   "15:04"
//	weekly:  "monday:15:04"
//	monthly: "02:15:04" (день месяца, час, минута)
//	cron:    стандартное 5-польное выражение
func NextFireTime(t *domain.Trigger, from time.Time) (time.Time, error) {
	loc := loadLocation(t.Timezone)
	local := from.In(loc)

	switch t.ScheduleType {
	case domain.ScheduleOnce:
		return nextOnce(t.ScheduleTime, from, loc)
	case domain.ScheduleDaily:
		return nextDaily(t.ScheduleTime, local)
	case domain.ScheduleWeekly:
		return nextWeekly(t.ScheduleTime, local)
	case domain.ScheduleMonthly:
		return nextMonthly(t.ScheduleTime, local)
	case domain.ScheduleCron:
		return nextCron(t.ScheduleTime, local)
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownScheduleType, t.ScheduleType)
	}
}

// ValidateScheduleConfig проверяет пару (тип, schedule_time) при
// создании триггера через API.
func ValidateScheduleConfig(scheduleType domain.ScheduleType, scheduleTime, timezone string) error {
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
	}

	loc := loadLocation(timezone)

	switch scheduleType {
	case domain.ScheduleOnce:
		_, err := parseOnce(scheduleTime, loc)
		return err
	case domain.ScheduleDaily:
		_, _, err := parseClock(scheduleTime)
		return err
	case domain.ScheduleWeekly:
		_, _, _, err := parseWeekly(scheduleTime)
		return err
	case domain.ScheduleMonthly:
		_, _, _, err := parseMonthly(scheduleTime)
		return err
	case domain.ScheduleCron:
		if _, err := cronParser.Parse(scheduleTime); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidScheduleTime, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScheduleType, scheduleType)
	}
}

// loadLocation загружает IANA-зону; пустая или невалидная зона — UTC.
func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func nextOnce(scheduleTime string, from time.Time, loc *time.Location) (time.Time, error) {
	at, err := parseOnce(scheduleTime, loc)
	if err != nil {
		return time.Time{}, err
	}
	if !at.After(from) {
		return time.Time{}, ErrScheduleExhausted
	}
	return at.UTC(), nil
}

func parseOnce(scheduleTime string, loc *time.Location) (time.Time, error) {
	if at, err := time.Parse(time.RFC3339, scheduleTime); err == nil {
		return at, nil
	}
	if at, err := time.ParseInLocation("2006-01-02 15:04", scheduleTime, loc); err == nil {
		return at, nil
	}
	return time.Time{}, fmt.Errorf("%w: once time %q", ErrInvalidScheduleTime, scheduleTime)
}

func nextDaily(scheduleTime string, local time.Time) (time.Time, error) {
	hour, minute, err := parseClock(scheduleTime)
	if err != nil {
		return time.Time{}, err
	}

	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, local.Location())
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next.UTC(), nil
}

func nextWeekly(scheduleTime string, local time.Time) (time.Time, error) {
	weekday, hour, minute, err := parseWeekly(scheduleTime)
	if err != nil {
		return time.Time{}, err
	}

	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, local.Location())
	daysAhead := (int(weekday) - int(local.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, daysAhead)
	if !next.After(local) {
		next = next.AddDate(0, 0, 7)
	}
	return next.UTC(), nil
}

func nextMonthly(scheduleTime string, local time.Time) (time.Time, error) {
	day, hour, minute, err := parseMonthly(scheduleTime)
	if err != nil {
		return time.Time{}, err
	}

	// Месяцы без нужного дня (31-е в феврале) пропускаются.
	year, month := local.Year(), local.Month()
	for i := 0; i < 24; i++ {
		next := time.Date(year, month, day, hour, minute, 0, 0, local.Location())
		if next.Day() == day && next.After(local) {
			return next.UTC(), nil
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return time.Time{}, fmt.Errorf("%w: monthly day %d never occurs", ErrInvalidScheduleTime, day)
}

func nextCron(expr string, local time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cron %q: %v", ErrInvalidScheduleTime, expr, err)
	}
	return schedule.Next(local).UTC(), nil
}

// parseClock разбирает "15:04".
func parseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: clock %q", ErrInvalidScheduleTime, s)
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: clock %q", ErrInvalidScheduleTime, s)
	}
	return hour, minute, nil
}

// parseWeekly разбирает "monday:15:04".
func parseWeekly(s string) (time.Weekday, int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: weekly %q", ErrInvalidScheduleTime, s)
	}
	weekday, ok := weekdays[strings.ToLower(parts[0])]
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: weekday %q", ErrInvalidScheduleTime, parts[0])
	}
	hour, minute, err := parseClock(parts[1] + ":" + parts[2])
	if err != nil {
		return 0, 0, 0, err
	}
	return weekday, hour, minute, nil
}

// parseMonthly разбирает "02:15:04" (день месяца, час, минута).
func parseMonthly(s string) (day, hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: monthly %q", ErrInvalidScheduleTime, s)
	}
	day, derr := strconv.Atoi(parts[0])
	if derr != nil || day < 1 || day > 31 {
		return 0, 0, 0, fmt.Errorf("%w: day of month %q", ErrInvalidScheduleTime, parts[0])
	}
	hour, minute, err = parseClock(parts[1] + ":" + parts[2])
	if err != nil {
		return 0, 0, 0, err
	}
	return day, hour, minute, nil
}
