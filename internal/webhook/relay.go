package webhook

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ruteravelar/filavoz/internal/realtime"
)

// ErrWebhookNotFound is returned when a subscription id does not exist.
var ErrWebhookNotFound = errors.New("webhook not found")

// Sink consumes change events; it is what the relay needs from Service.
type Sink interface {
	Dispatch(ctx context.Context, ev realtime.Event) error
}

// Relay pumps the facility change feed into webhook dispatch, so external
// systems see the same event stream the station views react to.
type Relay struct {
	feed realtime.Feed
	sink Sink
}

func NewRelay(feed realtime.Feed, sink Sink) *Relay {
	return &Relay{feed: feed, sink: sink}
}

// Run consumes events until ctx is cancelled or the feed closes.
func (r *Relay) Run(ctx context.Context) error {
	events, cancel, err := r.feed.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.sink.Dispatch(ctx, ev); err != nil {
				slog.Error("webhook dispatch failed", "error", err, "action", ev.Action)
			}
		}
	}
}
