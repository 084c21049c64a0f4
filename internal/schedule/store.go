package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruteravelar/filavoz/internal/models"
)

// ErrRuleNotFound is returned when no scheduled message exists for an id.
var ErrRuleNotFound = errors.New("scheduled message not found")

const ruleColumns = `id, unit_name, text_content, days_of_week, start_time, end_time,
	interval_minutes, repeat_count, is_active, valid_from, valid_until, last_played_at, created_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, rule *models.ScheduledMessage) error {
	if err := ValidateWindow(rule.StartTime, rule.EndTime); err != nil {
		return err
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO scheduled_messages
			(id, unit_name, text_content, days_of_week, start_time, end_time,
			 interval_minutes, repeat_count, is_active, valid_from, valid_until)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at`,
		rule.ID, rule.UnitName, rule.Text, rule.DaysOfWeek, rule.StartTime, rule.EndTime,
		rule.IntervalMinutes, rule.RepeatCount, rule.IsActive, rule.ValidFrom, rule.ValidUntil,
	).Scan(&rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert scheduled message: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.ScheduledMessage, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM scheduled_messages WHERE id = $1`, id)
	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scheduled message: %w", err)
	}
	return rule, nil
}

func (s *Store) Update(ctx context.Context, rule *models.ScheduledMessage) error {
	if err := ValidateWindow(rule.StartTime, rule.EndTime); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE scheduled_messages
		 SET unit_name = $2, text_content = $3, days_of_week = $4, start_time = $5,
		     end_time = $6, interval_minutes = $7, repeat_count = $8, is_active = $9,
		     valid_from = $10, valid_until = $11
		 WHERE id = $1`,
		rule.ID, rule.UnitName, rule.Text, rule.DaysOfWeek, rule.StartTime, rule.EndTime,
		rule.IntervalMinutes, rule.RepeatCount, rule.IsActive, rule.ValidFrom, rule.ValidUntil,
	)
	if err != nil {
		return fmt.Errorf("update scheduled message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM scheduled_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete scheduled message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]models.ScheduledMessage, error) {
	return s.list(ctx, `SELECT `+ruleColumns+` FROM scheduled_messages ORDER BY created_at, id`)
}

// ListActive returns active rules in the fixed evaluation order the
// scheduler relies on.
func (s *Store) ListActive(ctx context.Context) ([]models.ScheduledMessage, error) {
	return s.list(ctx, `SELECT `+ruleColumns+` FROM scheduled_messages WHERE is_active ORDER BY created_at, id`)
}

// MarkPlayed stamps last_played_at. Only the scheduler calls this.
func (s *Store) MarkPlayed(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE scheduled_messages SET last_played_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark played: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (s *Store) list(ctx context.Context, query string) ([]models.ScheduledMessage, error) {
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list scheduled messages: %w", err)
	}
	defer rows.Close()

	var rules []models.ScheduledMessage
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled message: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func scanRule(row pgx.Row) (*models.ScheduledMessage, error) {
	var rule models.ScheduledMessage
	var days []int32
	err := row.Scan(
		&rule.ID, &rule.UnitName, &rule.Text, &days, &rule.StartTime, &rule.EndTime,
		&rule.IntervalMinutes, &rule.RepeatCount, &rule.IsActive,
		&rule.ValidFrom, &rule.ValidUntil, &rule.LastPlayedAt, &rule.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rule.DaysOfWeek = make([]int, len(days))
	for i, d := range days {
		rule.DaysOfWeek[i] = int(d)
	}
	return &rule, nil
}
