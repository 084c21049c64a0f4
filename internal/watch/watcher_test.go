package watch

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ruteravelar/filavoz/internal/models"
)

func record(id uuid.UUID, name string, status models.Status, prio models.Priority) models.PatientRecord {
	return models.PatientRecord{
		ID:        id,
		Name:      name,
		Status:    status,
		Priority:  prio,
		CreatedAt: time.Now(),
	}
}

func TestDiffFirstSnapshotIsBaseline(t *testing.T) {
	s := NewState()
	snapshot := []models.PatientRecord{
		record(uuid.New(), "Ana", models.StatusWaitingDoctor, models.PriorityNormal),
		record(uuid.New(), "Bruno", models.StatusWaitingDoctor, models.PriorityNormal),
	}

	res := s.Diff(models.StatusWaitingDoctor, snapshot)
	if !res.Empty() {
		t.Fatalf("first snapshot must report nothing, got %d arrivals, %d new",
			len(res.Arrivals), len(res.NewPatients))
	}
}

func TestDiffDetectsNewPatient(t *testing.T) {
	s := NewState()
	s.Diff(models.StatusWaitingTriage, nil)

	fresh := record(uuid.New(), "Carla", models.StatusWaitingTriage, models.PriorityNormal)
	res := s.Diff(models.StatusWaitingTriage, []models.PatientRecord{fresh})

	if len(res.NewPatients) != 1 {
		t.Fatalf("expected 1 new patient, got %d", len(res.NewPatients))
	}
	if res.NewPatients[0].ID != fresh.ID {
		t.Errorf("wrong patient reported: got %s", res.NewPatients[0].ID)
	}
	if len(res.Arrivals) != 0 {
		t.Errorf("fresh registration must not count as arrival, got %d", len(res.Arrivals))
	}
}

func TestDiffDetectsArrival(t *testing.T) {
	s := NewState()
	id := uuid.New()

	// Known at triage first.
	s.Diff(models.StatusWaitingDoctor, []models.PatientRecord{
		record(id, "Diego", models.StatusWaitingTriage, models.PriorityNormal),
	})

	// Then forwarded into the doctor queue.
	res := s.Diff(models.StatusWaitingDoctor, []models.PatientRecord{
		record(id, "Diego", models.StatusWaitingDoctor, models.PriorityNormal),
	})

	if len(res.Arrivals) != 1 {
		t.Fatalf("expected 1 arrival, got %d", len(res.Arrivals))
	}
	if res.Arrivals[0].ID != id {
		t.Errorf("wrong arrival: got %s", res.Arrivals[0].ID)
	}
	if len(res.NewPatients) != 0 {
		t.Errorf("known patient must not count as new, got %d", len(res.NewPatients))
	}
}

func TestDiffDuplicateSnapshotIsIdempotent(t *testing.T) {
	s := NewState()
	id := uuid.New()
	snapshot := []models.PatientRecord{
		record(id, "Elisa", models.StatusWaitingECG, models.PriorityPriority),
	}

	s.Diff(models.StatusWaitingECG, nil)
	first := s.Diff(models.StatusWaitingECG, snapshot)
	if len(first.NewPatients) != 1 {
		t.Fatalf("expected first delivery to report the patient")
	}

	// Duplicate feed delivery re-reads the same snapshot.
	second := s.Diff(models.StatusWaitingECG, snapshot)
	if !second.Empty() {
		t.Errorf("duplicate snapshot must report nothing")
	}
}

func TestDiffIgnoresOtherQueues(t *testing.T) {
	s := NewState()
	s.Diff(models.StatusWaitingDoctor, nil)

	res := s.Diff(models.StatusWaitingDoctor, []models.PatientRecord{
		record(uuid.New(), "Fabio", models.StatusWaitingTriage, models.PriorityNormal),
	})
	if !res.Empty() {
		t.Errorf("patients in other queues must not be reported")
	}
}

func TestDiffRebaselinesAfterReconnect(t *testing.T) {
	id := uuid.New()
	snapshot := []models.PatientRecord{
		record(id, "Gilda", models.StatusWaitingXRay, models.PriorityNormal),
	}

	// A fresh state simulates a session resubscribing after a feed drop:
	// existing patients must not replay as events.
	s := NewState()
	res := s.Diff(models.StatusWaitingXRay, snapshot)
	if !res.Empty() {
		t.Errorf("rebaseline must swallow pre-existing patients")
	}
}

func TestDiffDepartureThenReturnIsArrival(t *testing.T) {
	s := NewState()
	id := uuid.New()

	s.Diff(models.StatusWaitingDoctor, []models.PatientRecord{
		record(id, "Hugo", models.StatusWaitingDoctor, models.PriorityNormal),
	})
	// Leaves for the x-ray queue.
	s.Diff(models.StatusWaitingDoctor, []models.PatientRecord{
		record(id, "Hugo", models.StatusWaitingXRay, models.PriorityNormal),
	})
	// Comes back.
	res := s.Diff(models.StatusWaitingDoctor, []models.PatientRecord{
		record(id, "Hugo", models.StatusWaitingDoctor, models.PriorityNormal),
	})

	if len(res.Arrivals) != 1 {
		t.Fatalf("return to the queue must be an arrival, got %d", len(res.Arrivals))
	}
}
