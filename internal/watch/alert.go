package watch

import (
	"time"

	"github.com/ruteravelar/filavoz/internal/models"
)

// AlertKind distinguishes the sound played for fresh registrations from the
// one played for forwarded patients.
type AlertKind string

const (
	AlertForwarded    AlertKind = "forwarded"
	AlertRegistration AlertKind = "registration"
)

// Alert is the single audible/visual cue raised for one diff tick.
type Alert struct {
	Kind     AlertKind
	Priority models.Priority
	Duration time.Duration
}

// alertDurations by patient priority.
var alertDurations = map[models.Priority]time.Duration{
	models.PriorityEmergency: 5 * time.Second,
	models.PriorityPriority:  4 * time.Second,
	models.PriorityNormal:    3 * time.Second,
}

// AlertFor reduces a diff result to at most one alert. Forwarded arrivals
// take precedence over new registrations; within a set the highest patient
// priority wins, so simultaneous arrivals never fire parallel alerts.
func AlertFor(res Result) (Alert, bool) {
	pick := func(records []models.PatientRecord, kind AlertKind) (Alert, bool) {
		if len(records) == 0 {
			return Alert{}, false
		}
		top := records[0]
		for _, rec := range records[1:] {
			if rec.Priority.Weight() > top.Priority.Weight() {
				top = rec
			}
		}
		return Alert{Kind: kind, Priority: top.Priority, Duration: alertDurations[top.Priority]}, true
	}

	if alert, ok := pick(res.Arrivals, AlertForwarded); ok {
		return alert, true
	}
	return pick(res.NewPatients, AlertRegistration)
}

// TopArrival returns the arrival that should be announced: the
// highest-priority forwarded patient of the tick, FIFO on ties.
func TopArrival(res Result) (models.PatientRecord, bool) {
	if len(res.Arrivals) == 0 {
		return models.PatientRecord{}, false
	}
	top := res.Arrivals[0]
	for _, rec := range res.Arrivals[1:] {
		if rec.Priority.Weight() > top.Priority.Weight() {
			top = rec
		}
	}
	return top, true
}
