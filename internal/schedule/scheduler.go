package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ruteravelar/filavoz/internal/models"
)

// Channel is the pipeline surface the scheduler submits through. Scheduled
// audio never bypasses the pipeline.
type Channel interface {
	Enqueue(req models.AnnouncementRequest)
	Busy() bool
}

// AudioGate reports whether playback is possible at all. Some display
// environments keep audio locked until a user interaction; until then
// scheduled content is skipped, not delayed.
type AudioGate interface {
	Unlocked() bool
}

// RuleSource provides rules in a fixed deterministic order and persists the
// last-played stamp.
type RuleSource interface {
	ListActive(ctx context.Context) ([]models.ScheduledMessage, error)
	MarkPlayed(ctx context.Context, id uuid.UUID, at time.Time) error
}

type Scheduler struct {
	rules   RuleSource
	channel Channel
	gate    AudioGate
	voice   string
	rate    float64
	period  time.Duration
}

func NewScheduler(rules RuleSource, channel Channel, gate AudioGate, voice string, rate float64, period time.Duration) *Scheduler {
	if period <= 0 {
		period = time.Minute
	}
	return &Scheduler{
		rules:   rules,
		channel: channel,
		gate:    gate,
		voice:   voice,
		rate:    rate,
		period:  period,
	}
}

// Run ticks on the fixed period until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.Tick(ctx, now); err != nil {
				slog.Error("scheduler tick failed", "error", err)
			}
		}
	}
}

// Tick evaluates the rules once. The whole tick is skipped while the channel
// is busy or audio is locked: scheduled content is best-effort, and a
// skipped rule mutates nothing so it stays eligible next tick. At most one
// rule fires per tick so two scheduled messages never talk over each other.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	if s.channel.Busy() {
		slog.Debug("scheduler skipped tick, channel busy")
		return nil
	}
	if s.gate != nil && !s.gate.Unlocked() {
		slog.Debug("scheduler skipped tick, audio locked")
		return nil
	}

	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if !Due(rule, now) {
			continue
		}

		// Stamp before playback starts: a crash mid-playback must not
		// re-fire the rule on the next tick.
		if err := s.rules.MarkPlayed(ctx, rule.ID, now); err != nil {
			return err
		}

		s.channel.Enqueue(models.AnnouncementRequest{
			Text:         rule.Text,
			Voice:        s.voice,
			SpeakingRate: s.rate,
			Repeat:       rule.RepeatCount,
			Source:       models.SourceScheduled,
		})
		slog.Info("scheduled announcement triggered", "rule_id", rule.ID, "unit", rule.UnitName)
		return nil
	}

	return nil
}
