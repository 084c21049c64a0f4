// Package schedule fires recurring clinic-wide announcements without
// colliding with patient-call audio.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ruteravelar/filavoz/internal/models"
)

// Due reports whether a rule should fire at now (facility-local time): the
// weekday matches, now falls inside the validity dates and the time-of-day
// window, and at least IntervalMinutes passed since the last play.
func Due(rule models.ScheduledMessage, now time.Time) bool {
	if !rule.IsActive {
		return false
	}

	weekday := int(now.Weekday())
	if !containsDay(rule.DaysOfWeek, weekday) {
		return false
	}

	if rule.ValidFrom != nil && now.Before(startOfDay(*rule.ValidFrom)) {
		return false
	}
	if rule.ValidUntil != nil && !now.Before(startOfDay(*rule.ValidUntil).AddDate(0, 0, 1)) {
		return false
	}

	if !inWindow(rule.StartTime, rule.EndTime, now) {
		return false
	}

	if rule.LastPlayedAt != nil {
		interval := time.Duration(rule.IntervalMinutes) * time.Minute
		if now.Sub(*rule.LastPlayedAt) < interval {
			return false
		}
	}

	return true
}

// ValidateWindow checks the "HH:MM" fields of a rule before it is stored.
func ValidateWindow(start, end string) error {
	if _, err := parseMinutes(start); err != nil {
		return fmt.Errorf("invalid start_time %q: %w", start, err)
	}
	if _, err := parseMinutes(end); err != nil {
		return fmt.Errorf("invalid end_time %q: %w", end, err)
	}
	return nil
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

// inWindow treats windows with end before start as crossing midnight.
func inWindow(start, end string, now time.Time) bool {
	s, err := parseMinutes(start)
	if err != nil {
		return false
	}
	e, err := parseMinutes(end)
	if err != nil {
		return false
	}

	m := now.Hour()*60 + now.Minute()
	if s <= e {
		return m >= s && m <= e
	}
	return m >= s || m <= e
}

func parseMinutes(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("want HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute")
	}
	return h*60 + m, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
