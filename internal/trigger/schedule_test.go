package trigger

import (
	"errors"
	"testing"
	"time"

	"github.com/shaiso/botflow/internal/domain"
)

func scheduleTrigger(scheduleType domain.ScheduleType, scheduleTime, timezone string) *domain.Trigger {
	return &domain.Trigger{
		Type:         domain.TriggerSchedule,
		IsActive:     true,
		ScheduleType: scheduleType,
		ScheduleTime: scheduleTime,
		Timezone:     timezone,
	}
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad test time %q: %v", value, err)
	}
	return at
}

func TestNextFireTime(t *testing.T) {
	tests := []struct {
		name         string
		scheduleType domain.ScheduleType
		scheduleTime string
		timezone     string
		from         string
		want         string
	}{
		{
			name:         "daily before today's time",
			scheduleType: domain.ScheduleDaily,
			scheduleTime: "09:00",
			from:         "2024-01-01T08:00:00Z",
			want:         "2024-01-01T09:00:00Z",
		},
		{
			name:         "daily after today's time rolls to tomorrow",
			scheduleType: domain.ScheduleDaily,
			scheduleTime: "09:00",
			from:         "2024-01-01T10:00:00Z",
			want:         "2024-01-02T09:00:00Z",
		},
		{
			name:         "daily exactly at the moment rolls forward",
			scheduleType: domain.ScheduleDaily,
			scheduleTime: "09:00",
			from:         "2024-01-01T09:00:00Z",
			want:         "2024-01-02T09:00:00Z",
		},
		{
			name:         "daily in timezone",
			scheduleType: domain.ScheduleDaily,
			scheduleTime: "09:00",
			timezone:     "America/Sao_Paulo", // UTC-3
			from:         "2024-01-01T11:00:00Z",
			want:         "2024-01-01T12:00:00Z",
		},
		{
			name:         "weekly next monday",
			scheduleType: domain.ScheduleWeekly,
			scheduleTime: "monday:10:00",
			from:         "2024-01-03T12:00:00Z", // среда
			want:         "2024-01-08T10:00:00Z",
		},
		{
			name:         "weekly same day before time",
			scheduleType: domain.ScheduleWeekly,
			scheduleTime: "wednesday:15:00",
			from:         "2024-01-03T12:00:00Z", // среда
			want:         "2024-01-03T15:00:00Z",
		},
		{
			name:         "weekly same day after time rolls a week",
			scheduleType: domain.ScheduleWeekly,
			scheduleTime: "wednesday:10:00",
			from:         "2024-01-03T12:00:00Z",
			want:         "2024-01-10T10:00:00Z",
		},
		{
			name:         "monthly this month",
			scheduleType: domain.ScheduleMonthly,
			scheduleTime: "15:09:00",
			from:         "2024-01-10T00:00:00Z",
			want:         "2024-01-15T09:00:00Z",
		},
		{
			name:         "monthly rolls over the year",
			scheduleType: domain.ScheduleMonthly,
			scheduleTime: "15:09:00",
			from:         "2023-12-20T00:00:00Z",
			want:         "2024-01-15T09:00:00Z",
		},
		{
			name:         "monthly skips short months",
			scheduleType: domain.ScheduleMonthly,
			scheduleTime: "31:09:00",
			from:         "2024-02-01T00:00:00Z", // в феврале нет 31-го
			want:         "2024-03-31T09:00:00Z",
		},
		{
			name:         "once in the future",
			scheduleType: domain.ScheduleOnce,
			scheduleTime: "2024-06-01T12:00:00Z",
			from:         "2024-01-01T00:00:00Z",
			want:         "2024-06-01T12:00:00Z",
		},
		{
			name:         "cron every hour",
			scheduleType: domain.ScheduleCron,
			scheduleTime: "0 * * * *",
			from:         "2024-01-01T10:30:00Z",
			want:         "2024-01-01T11:00:00Z",
		},
		{
			name:         "cron weekdays at nine",
			scheduleType: domain.ScheduleCron,
			scheduleTime: "0 9 * * 1-5",
			from:         "2024-01-06T10:00:00Z", // суббота
			want:         "2024-01-08T09:00:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trg := scheduleTrigger(tt.scheduleType, tt.scheduleTime, tt.timezone)

			got, err := NextFireTime(trg, mustTime(t, tt.from))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			want := mustTime(t, tt.want)
			if !got.Equal(want) {
				t.Errorf("NextFireTime = %v, want %v", got, want)
			}
			if got.Location() != time.UTC {
				t.Errorf("result not in UTC: %v", got.Location())
			}
		})
	}
}

func TestNextFireTime_OnceInPast(t *testing.T) {
	trg := scheduleTrigger(domain.ScheduleOnce, "2023-01-01T00:00:00Z", "")

	_, err := NextFireTime(trg, mustTime(t, "2024-01-01T00:00:00Z"))
	if !errors.Is(err, ErrScheduleExhausted) {
		t.Fatalf("expected ErrScheduleExhausted, got %v", err)
	}
}

func TestNextFireTime_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	trg := scheduleTrigger(domain.ScheduleDaily, "09:00", "Mars/Olympus")

	got, err := NextFireTime(trg, mustTime(t, "2024-01-01T08:00:00Z"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(mustTime(t, "2024-01-01T09:00:00Z")) {
		t.Errorf("expected UTC fallback, got %v", got)
	}
}

func TestNextFireTime_UnknownType(t *testing.T) {
	trg := scheduleTrigger("hourly", "xx", "")

	_, err := NextFireTime(trg, time.Now())
	if !errors.Is(err, ErrUnknownScheduleType) {
		t.Fatalf("expected ErrUnknownScheduleType, got %v", err)
	}
}

func TestValidateScheduleConfig(t *testing.T) {
	tests := []struct {
		name         string
		scheduleType domain.ScheduleType
		scheduleTime string
		timezone     string
		wantErr      bool
	}{
		{"valid daily", domain.ScheduleDaily, "09:30", "", false},
		{"daily out of range", domain.ScheduleDaily, "25:00", "", true},
		{"daily garbage", domain.ScheduleDaily, "morning", "", true},
		{"valid weekly", domain.ScheduleWeekly, "friday:18:00", "", false},
		{"weekly bad weekday", domain.ScheduleWeekly, "someday:18:00", "", true},
		{"weekly missing minute", domain.ScheduleWeekly, "friday:18", "", true},
		{"valid monthly", domain.ScheduleMonthly, "1:00:00", "", false},
		{"monthly day 32", domain.ScheduleMonthly, "32:00:00", "", true},
		{"valid once rfc3339", domain.ScheduleOnce, "2030-01-01T00:00:00Z", "", false},
		{"valid once local format", domain.ScheduleOnce, "2030-01-01 12:00", "America/Sao_Paulo", false},
		{"once garbage", domain.ScheduleOnce, "tomorrow", "", true},
		{"valid cron", domain.ScheduleCron, "*/5 * * * *", "", false},
		{"cron six fields", domain.ScheduleCron, "0 0 * * * *", "", true},
		{"invalid timezone", domain.ScheduleDaily, "09:00", "Mars/Olympus", true},
		{"unknown type", "hourly", "x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScheduleConfig(tt.scheduleType, tt.scheduleTime, tt.timezone)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateScheduleConfig error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
