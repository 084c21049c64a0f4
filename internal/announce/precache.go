package announce

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ruteravelar/filavoz/internal/audiocache"
	"github.com/ruteravelar/filavoz/internal/synth"
)

// WarmMarker gates warm-up idempotence.
type WarmMarker interface {
	Warmed(ctx context.Context) (bool, error)
	SetWarmed(ctx context.Context) error
	ClearWarmed(ctx context.Context) error
}

// WarmCache is what the precacher needs from the audio cache.
type WarmCache interface {
	AudioCache
	WarmMarker
}

// SuccessThreshold is the cached fraction of the catalogue required before
// the warmed marker is set. Below it the marker stays unset and a later run
// retries the remainder.
const SuccessThreshold = 0.8

// Report summarizes one warm-up run.
type Report struct {
	Total         int  `json:"total"`
	AlreadyCached int  `json:"already_cached"`
	Synthesized   int  `json:"synthesized"`
	Failed        int  `json:"failed"`
	Skipped       bool `json:"skipped"`
	Marked        bool `json:"marked"`
}

// Precacher synthesizes a fixed catalogue of phrases ahead of need,
// sequentially and with a small delay between backend calls to respect
// upstream rate limits.
type Precacher struct {
	synth   synth.Synthesizer
	cache   WarmCache
	phrases []string
	voice   string
	rate    float64
	pitch   float64
	delay   time.Duration
}

func NewPrecacher(s synth.Synthesizer, cache WarmCache, phrases []string, voice string, rate, pitch float64, delay time.Duration) *Precacher {
	if rate <= 0 {
		rate = 1.0
	}
	return &Precacher{
		synth:   s,
		cache:   cache,
		phrases: phrases,
		voice:   voice,
		rate:    rate,
		pitch:   pitch,
		delay:   delay,
	}
}

// Run warms the catalogue. It is idempotent: once a run has been marked
// warmed, later runs are no-ops unless force clears the marker first.
func (w *Precacher) Run(ctx context.Context, force bool) (*Report, error) {
	report := &Report{Total: len(w.phrases)}

	if force {
		if err := w.cache.ClearWarmed(ctx); err != nil {
			return nil, err
		}
	} else {
		warmed, err := w.cache.Warmed(ctx)
		if err != nil {
			return nil, err
		}
		if warmed {
			report.Skipped = true
			return report, nil
		}
	}

	for _, phrase := range w.phrases {
		key := audiocache.Key(phrase, w.voice, w.rate)

		if _, err := w.cache.Get(ctx, key); err == nil {
			report.AlreadyCached++
			continue
		} else if !errors.Is(err, audiocache.ErrMiss) {
			slog.Warn("precache lookup failed", "error", err, "phrase", phrase)
		}

		res, err := w.synth.Synthesize(ctx, synth.Request{
			Text:         phrase,
			Voice:        w.voice,
			SpeakingRate: w.rate,
			Pitch:        w.pitch,
		})
		if err != nil {
			report.Failed++
			slog.Error("precache synthesis failed", "error", err, "phrase", phrase)
		} else if err := w.cache.Put(ctx, key, res.Audio); err != nil {
			// Treat as not-yet-cached so a later run retries this phrase.
			report.Failed++
			slog.Warn("precache write failed", "error", err, "phrase", phrase)
		} else {
			report.Synthesized++
		}

		select {
		case <-time.After(w.delay):
		case <-ctx.Done():
			return report, ctx.Err()
		}
	}

	cached := report.AlreadyCached + report.Synthesized
	if report.Total > 0 && float64(cached)/float64(report.Total) >= SuccessThreshold {
		if err := w.cache.SetWarmed(ctx); err != nil {
			return report, err
		}
		report.Marked = true
	}

	slog.Info("precache run finished",
		"total", report.Total,
		"already_cached", report.AlreadyCached,
		"synthesized", report.Synthesized,
		"failed", report.Failed,
		"marked", report.Marked,
	)
	return report, nil
}
