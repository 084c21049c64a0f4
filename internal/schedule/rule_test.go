package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ruteravelar/filavoz/internal/models"
)

// tuesdayAt returns a fixed Tuesday with the given wall-clock time.
func tuesdayAt(hour, min int) time.Time {
	return time.Date(2026, time.March, 3, hour, min, 0, 0, time.Local)
}

func baseRule() models.ScheduledMessage {
	return models.ScheduledMessage{
		ID:              uuid.New(),
		UnitName:        "Clínica Central",
		Text:            "Mantenha o uso de máscara nas áreas de espera",
		DaysOfWeek:      []int{1, 2, 3, 4, 5},
		StartTime:       "08:00",
		EndTime:         "18:00",
		IntervalMinutes: 30,
		RepeatCount:     1,
		IsActive:        true,
	}
}

func TestDueInsideWindow(t *testing.T) {
	if !Due(baseRule(), tuesdayAt(10, 0)) {
		t.Error("rule inside window and weekday must be due")
	}
}

func TestDueInactiveRule(t *testing.T) {
	rule := baseRule()
	rule.IsActive = false
	if Due(rule, tuesdayAt(10, 0)) {
		t.Error("inactive rule must never fire")
	}
}

func TestDueWrongWeekday(t *testing.T) {
	rule := baseRule()
	rule.DaysOfWeek = []int{0, 6} // weekend only
	if Due(rule, tuesdayAt(10, 0)) {
		t.Error("rule must not fire outside its weekdays")
	}
}

func TestDueOutsideTimeWindow(t *testing.T) {
	rule := baseRule()
	if Due(rule, tuesdayAt(7, 59)) {
		t.Error("rule must not fire before its window")
	}
	if Due(rule, tuesdayAt(18, 1)) {
		t.Error("rule must not fire after its window")
	}
	if !Due(rule, tuesdayAt(8, 0)) {
		t.Error("window start is inclusive")
	}
	if !Due(rule, tuesdayAt(18, 0)) {
		t.Error("window end is inclusive")
	}
}

func TestDueWindowCrossingMidnight(t *testing.T) {
	rule := baseRule()
	rule.StartTime = "22:00"
	rule.EndTime = "02:00"

	if !Due(rule, tuesdayAt(23, 30)) {
		t.Error("overnight window must cover late evening")
	}
	if !Due(rule, tuesdayAt(1, 0)) {
		t.Error("overnight window must cover early morning")
	}
	if Due(rule, tuesdayAt(12, 0)) {
		t.Error("overnight window must exclude midday")
	}
}

func TestDueIntervalSinceLastPlay(t *testing.T) {
	rule := baseRule()
	now := tuesdayAt(10, 0)

	recent := now.Add(-10 * time.Minute)
	rule.LastPlayedAt = &recent
	if Due(rule, now) {
		t.Error("rule must respect its interval")
	}

	old := now.Add(-31 * time.Minute)
	rule.LastPlayedAt = &old
	if !Due(rule, now) {
		t.Error("rule must fire once the interval elapsed")
	}
}

func TestDueValidityDates(t *testing.T) {
	rule := baseRule()
	now := tuesdayAt(10, 0)

	future := now.AddDate(0, 0, 7)
	rule.ValidFrom = &future
	if Due(rule, now) {
		t.Error("rule must not fire before valid_from")
	}

	rule = baseRule()
	past := now.AddDate(0, 0, -7)
	rule.ValidUntil = &past
	if Due(rule, now) {
		t.Error("rule must not fire after valid_until")
	}

	// valid_until covers its whole day.
	rule = baseRule()
	today := startOfDay(now)
	rule.ValidUntil = &today
	if !Due(rule, now) {
		t.Error("rule must still fire on its last valid day")
	}
}

func TestValidateWindow(t *testing.T) {
	if err := ValidateWindow("08:00", "18:00"); err != nil {
		t.Errorf("valid window rejected: %v", err)
	}
	if err := ValidateWindow("8h00", "18:00"); err == nil {
		t.Error("malformed start_time accepted")
	}
	if err := ValidateWindow("08:00", "24:00"); err == nil {
		t.Error("hour 24 accepted")
	}
	if err := ValidateWindow("08:00", "17:60"); err == nil {
		t.Error("minute 60 accepted")
	}
}
