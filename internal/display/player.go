package display

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/ruteravelar/filavoz/internal/announce"
)

// Playback pacing. Displays stream the artifact themselves; the player only
// has to hold the exclusive channel for roughly as long as the audio runs.
const (
	minPlayDuration = 2 * time.Second
	perRuneDuration = 70 * time.Millisecond
)

// Player renders announcements by broadcasting a play command to the
// displays and holding the channel for the estimated audio duration. The
// pipeline's per-repetition timeout caps the hold regardless of estimate.
type Player struct {
	hub *Hub
}

func NewPlayer(hub *Hub) *Player {
	return &Player{hub: hub}
}

func (p *Player) Play(ctx context.Context, a announce.Artifact) error {
	data, err := json.Marshal(map[string]string{
		"key":  a.Key,
		"url":  a.URL,
		"text": a.Text,
	})
	if err != nil {
		return err
	}
	p.hub.Broadcast(Event{Type: "play", Data: data})

	select {
	case <-time.After(estimateDuration(a.Text)):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func estimateDuration(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * perRuneDuration
	if d < minPlayDuration {
		d = minPlayDuration
	}
	return d
}
