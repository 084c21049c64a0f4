// Package station runs one session per station view: it consumes the
// realtime feed, re-reads the patient snapshot, diffs it, and turns arrivals
// into display alerts and voice announcements.
package station

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteravelar/filavoz/internal/announce"
	"github.com/ruteravelar/filavoz/internal/models"
	"github.com/ruteravelar/filavoz/internal/realtime"
	"github.com/ruteravelar/filavoz/internal/watch"
)

// Lister provides the current active-patient snapshot.
type Lister interface {
	ListActive(ctx context.Context) ([]models.PatientRecord, error)
}

// Announcer is the pipeline entry point. Sessions never play audio directly.
type Announcer interface {
	Enqueue(req models.AnnouncementRequest)
}

// Display receives the session's visual output.
type Display interface {
	PushQueue(station string, records []models.PatientRecord)
	RaiseAlert(station string, alert watch.Alert)
	ClearAlert(station string)
}

type Session struct {
	station   models.Station
	lister    Lister
	feed      realtime.Feed
	announcer Announcer
	display   Display
	state     *watch.State

	timerMu    sync.Mutex
	alertTimer *time.Timer
}

func NewSession(st models.Station, lister Lister, feed realtime.Feed, announcer Announcer, display Display) *Session {
	return &Session{
		station:   st,
		lister:    lister,
		feed:      feed,
		announcer: announcer,
		display:   display,
		state:     watch.NewState(),
	}
}

// Run subscribes to the feed and processes change events in delivery order
// until ctx is cancelled or the feed closes. The first snapshot only seeds
// the watcher state; it never raises alerts.
func (s *Session) Run(ctx context.Context) error {
	events, cancel, err := s.feed.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer s.teardown()

	s.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			s.refresh(ctx)
		}
	}
}

// refresh re-reads the store and reacts to the diff. Reading the store on
// every event makes duplicate or reordered feed deliveries harmless.
func (s *Session) refresh(ctx context.Context) {
	records, err := s.lister.ListActive(ctx)
	if err != nil {
		slog.Error("station snapshot failed", "error", err, "station", s.station.ID)
		return
	}

	res := s.state.Diff(s.station.Expected, records)

	queue := make([]models.PatientRecord, 0, len(records))
	for _, rec := range records {
		if rec.Status == s.station.Expected {
			queue = append(queue, rec)
		}
	}
	models.SortQueue(queue)
	s.display.PushQueue(s.station.ID, queue)

	if res.Empty() {
		return
	}

	if alert, ok := watch.AlertFor(res); ok {
		s.raiseAlert(alert)
	}

	// One announcement per tick at most, and only for audible forwards.
	// Manual calls are announced by the calling station, and silent
	// forwards stay silent.
	if top, ok := watch.TopArrival(res); ok && top.CallType == models.CallTypeForwarded {
		id := top.ID
		s.announcer.Enqueue(models.AnnouncementRequest{
			Text:      announce.CallText(top.Name, top.Destination),
			Repeat:    1,
			Source:    models.SourceForwardedAlert,
			Priority:  top.Priority,
			PatientID: &id,
		})
	}
}

// raiseAlert shows the cue and arms its self-clear timer, replacing any
// alert still pending from a previous tick.
func (s *Session) raiseAlert(alert watch.Alert) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.alertTimer != nil {
		s.alertTimer.Stop()
	}
	s.display.RaiseAlert(s.station.ID, alert)
	s.alertTimer = time.AfterFunc(alert.Duration, func() {
		s.display.ClearAlert(s.station.ID)
	})
}

func (s *Session) teardown() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.alertTimer != nil {
		s.alertTimer.Stop()
		s.alertTimer = nil
		s.display.ClearAlert(s.station.ID)
	}
}
