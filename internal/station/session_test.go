package station

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ruteravelar/filavoz/internal/models"
	"github.com/ruteravelar/filavoz/internal/realtime"
	"github.com/ruteravelar/filavoz/internal/watch"
)

type fakeLister struct {
	mu      sync.Mutex
	records []models.PatientRecord
}

func (f *fakeLister) set(records []models.PatientRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
}

func (f *fakeLister) ListActive(_ context.Context) ([]models.PatientRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PatientRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

type fakeAnnouncer struct {
	mu       sync.Mutex
	requests []models.AnnouncementRequest
}

func (f *fakeAnnouncer) Enqueue(req models.AnnouncementRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeAnnouncer) all() []models.AnnouncementRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AnnouncementRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

type fakeDisplay struct {
	mu      sync.Mutex
	queues  [][]models.PatientRecord
	alerts  []watch.Alert
	cleared int
}

func (f *fakeDisplay) PushQueue(_ string, records []models.PatientRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]models.PatientRecord, len(records))
	copy(cp, records)
	f.queues = append(f.queues, cp)
}

func (f *fakeDisplay) RaiseAlert(_ string, alert watch.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
}

func (f *fakeDisplay) ClearAlert(_ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func (f *fakeDisplay) alertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func (f *fakeDisplay) queueCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queues)
}

type harness struct {
	lister    *fakeLister
	feed      *realtime.MemoryFeed
	announcer *fakeAnnouncer
	display   *fakeDisplay
	cancel    context.CancelFunc
}

func doctorStation() models.Station {
	return models.Station{ID: "consultorio", Name: "Consultório", Expected: models.StatusWaitingDoctor}
}

func startSession(t *testing.T, st models.Station) *harness {
	t.Helper()
	h := &harness{
		lister:    &fakeLister{},
		feed:      realtime.NewMemoryFeed(),
		announcer: &fakeAnnouncer{},
		display:   &fakeDisplay{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)

	sess := NewSession(st, h.lister, h.feed, h.announcer, h.display)
	go sess.Run(ctx)

	// Wait for the baseline snapshot.
	waitCond(t, func() bool { return h.display.queueCount() >= 1 })
	return h
}

// poke publishes a change event and waits for the session to process it.
func (h *harness) poke(t *testing.T) {
	t.Helper()
	before := h.display.queueCount()
	h.feed.Publish(context.Background(), realtime.Event{PatientID: uuid.New(), Action: "call", At: time.Now()})
	waitCond(t, func() bool { return h.display.queueCount() > before })
}

func waitCond(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func patientAt(name string, status models.Status, callType models.CallType, prio models.Priority) models.PatientRecord {
	return models.PatientRecord{
		ID:          uuid.New(),
		Name:        name,
		Status:      status,
		CallType:    callType,
		Priority:    prio,
		Destination: "Consultório",
		CreatedAt:   time.Now(),
	}
}

func TestSessionBaselineRaisesNothing(t *testing.T) {
	st := doctorStation()
	h := &harness{
		lister:    &fakeLister{},
		feed:      realtime.NewMemoryFeed(),
		announcer: &fakeAnnouncer{},
		display:   &fakeDisplay{},
	}
	// Patients already waiting before the session starts.
	h.lister.set([]models.PatientRecord{
		patientAt("Ana", st.Expected, models.CallTypeForwarded, models.PriorityNormal),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess := NewSession(st, h.lister, h.feed, h.announcer, h.display)
	go sess.Run(ctx)

	waitCond(t, func() bool { return h.display.queueCount() >= 1 })
	if h.display.alertCount() != 0 {
		t.Error("baseline snapshot must not raise alerts")
	}
	if len(h.announcer.all()) != 0 {
		t.Error("baseline snapshot must not announce")
	}
}

func TestSessionAnnouncesForwardedArrival(t *testing.T) {
	st := doctorStation()
	h := startSession(t, st)

	// Known at triage first.
	rec := patientAt("Bruno Dias", models.StatusWaitingTriage, models.CallTypeRegistered, models.PriorityNormal)
	h.lister.set([]models.PatientRecord{rec})
	h.poke(t)

	// Forwarded into this station's queue.
	rec.Status = st.Expected
	rec.CallType = models.CallTypeForwarded
	h.lister.set([]models.PatientRecord{rec})
	h.poke(t)

	waitCond(t, func() bool { return len(h.announcer.all()) == 1 })
	req := h.announcer.all()[0]
	if req.Source != models.SourceForwardedAlert {
		t.Errorf("expected forwarded-alert source, got %q", req.Source)
	}
	if req.Text != "Bruno Dias, Consultório" {
		t.Errorf("unexpected announcement text %q", req.Text)
	}
	if req.PatientID == nil || *req.PatientID != rec.ID {
		t.Error("announcement must carry the patient id for cancellation")
	}
	if h.display.alertCount() != 1 {
		t.Errorf("expected 1 alert, got %d", h.display.alertCount())
	}
}

func TestSessionSilentForwardStaysSilent(t *testing.T) {
	st := doctorStation()
	h := startSession(t, st)

	rec := patientAt("Carla Luz", models.StatusWaitingTriage, models.CallTypeRegistered, models.PriorityNormal)
	h.lister.set([]models.PatientRecord{rec})
	h.poke(t)

	rec.Status = st.Expected
	rec.CallType = models.CallTypeSilent
	h.lister.set([]models.PatientRecord{rec})
	h.poke(t)

	// The visual alert still fires; the voice does not.
	waitCond(t, func() bool { return h.display.alertCount() == 1 })
	if got := h.announcer.all(); len(got) != 0 {
		t.Fatalf("silent forward must not be announced, got %d requests", len(got))
	}
}

func TestSessionNewRegistrationAlertsWithoutVoice(t *testing.T) {
	st := models.Station{ID: "triagem", Name: "Triagem", Expected: models.StatusWaitingTriage}
	h := startSession(t, st)

	h.lister.set([]models.PatientRecord{
		patientAt("Diego Reis", st.Expected, models.CallTypeRegistered, models.PriorityEmergency),
	})
	h.poke(t)

	waitCond(t, func() bool { return h.display.alertCount() == 1 })
	h.display.mu.Lock()
	alert := h.display.alerts[0]
	h.display.mu.Unlock()
	if alert.Kind != watch.AlertRegistration {
		t.Errorf("expected registration alert, got %q", alert.Kind)
	}
	if alert.Priority != models.PriorityEmergency {
		t.Errorf("expected emergency priority, got %q", alert.Priority)
	}
	if len(h.announcer.all()) != 0 {
		t.Error("fresh registrations are not voice-announced")
	}
}

func TestSessionQueuePushFiltersAndSorts(t *testing.T) {
	st := doctorStation()
	h := startSession(t, st)

	normal := patientAt("Elisa", st.Expected, models.CallTypeForwarded, models.PriorityNormal)
	normal.CreatedAt = time.Now().Add(-time.Hour)
	urgent := patientAt("Fabio", st.Expected, models.CallTypeForwarded, models.PriorityEmergency)
	other := patientAt("Gilda", models.StatusWaitingXRay, models.CallTypeForwarded, models.PriorityNormal)

	h.lister.set([]models.PatientRecord{normal, urgent, other})
	h.poke(t)

	h.display.mu.Lock()
	last := h.display.queues[len(h.display.queues)-1]
	h.display.mu.Unlock()

	if len(last) != 2 {
		t.Fatalf("queue push must only contain this station's patients, got %d", len(last))
	}
	if last[0].ID != urgent.ID {
		t.Errorf("emergency must sort first, got %q", last[0].Name)
	}
}

func TestSessionDuplicateEventIsHarmless(t *testing.T) {
	st := doctorStation()
	h := startSession(t, st)

	rec := patientAt("Hugo", models.StatusWaitingTriage, models.CallTypeRegistered, models.PriorityNormal)
	h.lister.set([]models.PatientRecord{rec})
	h.poke(t)

	rec.Status = st.Expected
	rec.CallType = models.CallTypeForwarded
	h.lister.set([]models.PatientRecord{rec})
	h.poke(t)
	// Same snapshot delivered again.
	h.poke(t)

	time.Sleep(50 * time.Millisecond)
	if got := len(h.announcer.all()); got != 1 {
		t.Errorf("duplicate delivery must not re-announce, got %d", got)
	}
	if got := h.display.alertCount(); got != 1 {
		t.Errorf("duplicate delivery must not re-alert, got %d", got)
	}
}
