package models

import (
	"time"

	"github.com/google/uuid"
)

// ScheduledMessage is a recurring clinic-wide announcement rule. Times of day
// are stored as "HH:MM" in the facility's local time. DaysOfWeek uses 0=Sunday
// through 6=Saturday. LastPlayedAt is mutated only by the scheduler.
type ScheduledMessage struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	UnitName        string     `json:"unit_name" db:"unit_name"`
	Text            string     `json:"text_content" db:"text_content"`
	DaysOfWeek      []int      `json:"days_of_week" db:"days_of_week"`
	StartTime       string     `json:"start_time" db:"start_time"`
	EndTime         string     `json:"end_time" db:"end_time"`
	IntervalMinutes int        `json:"interval_minutes" db:"interval_minutes"`
	RepeatCount     int        `json:"repeat_count" db:"repeat_count"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	ValidFrom       *time.Time `json:"valid_from,omitempty" db:"valid_from"`
	ValidUntil      *time.Time `json:"valid_until,omitempty" db:"valid_until"`
	LastPlayedAt    *time.Time `json:"last_played_at,omitempty" db:"last_played_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}
