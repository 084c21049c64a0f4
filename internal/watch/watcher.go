// Package watch detects station arrivals by diffing successive snapshots of
// the facility's active patient list.
package watch

import (
	"github.com/google/uuid"

	"github.com/ruteravelar/filavoz/internal/models"
)

// State is the per-station memory of the last observed snapshot. It lives in
// the station's session, is rebuilt from scratch on (re)subscription, and is
// never persisted.
type State struct {
	baselined bool
	statuses  map[uuid.UUID]models.Status
}

func NewState() *State {
	return &State{statuses: make(map[uuid.UUID]models.Status)}
}

// Result of one diff tick.
type Result struct {
	// Arrivals are previously known patients whose status just became the
	// station's expected status (an inter-station forward or call).
	Arrivals []models.PatientRecord
	// NewPatients are ids never seen before that sit in the station's queue
	// (fresh registrations).
	NewPatients []models.PatientRecord
}

func (r Result) Empty() bool {
	return len(r.Arrivals) == 0 && len(r.NewPatients) == 0
}

// Diff compares the current active-patient snapshot against the previous one
// and reports arrivals for the queue identified by expected. The first
// snapshot after (re)subscription is a baseline capture only: it updates the
// state and reports nothing, so a reconnect never replays history as fresh
// events. Duplicate feed deliveries produce identical snapshots and
// therefore empty results.
func (s *State) Diff(expected models.Status, current []models.PatientRecord) Result {
	var res Result

	if s.baselined {
		for _, rec := range current {
			if rec.Status != expected {
				continue
			}
			prev, known := s.statuses[rec.ID]
			switch {
			case !known:
				res.NewPatients = append(res.NewPatients, rec)
			case prev != expected:
				res.Arrivals = append(res.Arrivals, rec)
			}
		}
	}

	next := make(map[uuid.UUID]models.Status, len(current))
	for _, rec := range current {
		next[rec.ID] = rec.Status
	}
	s.statuses = next
	s.baselined = true

	return res
}
