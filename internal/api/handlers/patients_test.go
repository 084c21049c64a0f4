package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ruteravelar/filavoz/internal/flow"
	"github.com/ruteravelar/filavoz/internal/models"
	"github.com/ruteravelar/filavoz/internal/realtime"
)

type stubStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*models.PatientRecord
}

func newStubStore() *stubStore {
	return &stubStore{records: make(map[uuid.UUID]*models.PatientRecord)}
}

func (s *stubStore) Insert(_ context.Context, rec *models.PatientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *stubStore) Get(_ context.Context, id uuid.UUID) (*models.PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, flow.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *stubStore) HasActiveByName(_ context.Context, name string, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if strings.EqualFold(rec.Name, name) && rec.Active() && !rec.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubStore) Move(_ context.Context, id uuid.UUID, from models.Status, upd flow.Update) (*models.PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.Status != from {
		return nil, flow.ErrNotFound
	}
	rec.Status = upd.Status
	rec.CallType = upd.CallType
	rec.Destination = upd.Destination
	rec.OriginStation = upd.OriginStation
	now := time.Now()
	if upd.StampCalled {
		rec.CalledAt = &now
	}
	if upd.StampCompleted {
		rec.CompletedAt = &now
	}
	cp := *rec
	return &cp, nil
}

func (s *stubStore) ListByStatus(_ context.Context, status models.Status) ([]models.PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PatientRecord
	for _, rec := range s.records {
		if rec.Status == status {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *stubStore) ListActive(_ context.Context) ([]models.PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PatientRecord
	for _, rec := range s.records {
		if rec.Active() {
			out = append(out, *rec)
		}
	}
	return out, nil
}

type stubAnnouncer struct {
	mu        sync.Mutex
	enqueued  []models.AnnouncementRequest
	cancelled []uuid.UUID
}

func (s *stubAnnouncer) Enqueue(req models.AnnouncementRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueued = append(s.enqueued, req)
}

func (s *stubAnnouncer) CancelPatient(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, id)
}

func newPatientRouter() (*chi.Mux, *stubStore, *stubAnnouncer) {
	store := newStubStore()
	announcer := &stubAnnouncer{}
	engine := flow.NewEngine(store, realtime.NewMemoryFeed())
	h := NewPatientHandler(engine, announcer, nil)

	r := chi.NewRouter()
	r.Post("/patients", h.Register)
	r.Get("/patients", h.List)
	r.Post("/patients/{id}/call", h.Call)
	r.Post("/patients/{id}/recall", h.Recall)
	r.Post("/patients/{id}/forward", h.Forward)
	r.Post("/patients/{id}/finish", h.Finish)
	r.Post("/patients/{id}/finish-silent", h.FinishSilent)
	return r, store, announcer
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRegisterEndpoint(t *testing.T) {
	r, _, _ := newPatientRouter()

	resp := doJSON(t, r, "POST", "/patients", map[string]string{
		"patient_name": "Maria Souza",
		"priority":     "priority",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body)
	}

	var rec models.PatientRecord
	if err := json.Unmarshal(resp.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rec.Status != models.StatusWaitingTriage {
		t.Errorf("expected waiting-triage, got %q", rec.Status)
	}
	if rec.Priority != models.PriorityPriority {
		t.Errorf("expected priority, got %q", rec.Priority)
	}
}

func TestRegisterDuplicateReturns409(t *testing.T) {
	r, _, _ := newPatientRouter()

	body := map[string]string{"patient_name": "João Lima"}
	if resp := doJSON(t, r, "POST", "/patients", body); resp.Code != http.StatusCreated {
		t.Fatalf("first register: %d", resp.Code)
	}
	if resp := doJSON(t, r, "POST", "/patients", body); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", resp.Code)
	}
}

func TestRegisterRejectsMissingName(t *testing.T) {
	r, _, _ := newPatientRouter()
	if resp := doJSON(t, r, "POST", "/patients", map[string]string{}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCallEndpointAnnounces(t *testing.T) {
	r, _, announcer := newPatientRouter()

	resp := doJSON(t, r, "POST", "/patients", map[string]string{"patient_name": "Rita Costa"})
	var rec models.PatientRecord
	json.Unmarshal(resp.Body.Bytes(), &rec)

	resp = doJSON(t, r, "POST", "/patients/"+rec.ID.String()+"/call", map[string]interface{}{
		"from_status": "waiting-triage",
		"destination": map[string]string{"queue": "waiting-doctor", "label": "Consultório 1"},
		"station":     "triagem",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body)
	}

	announcer.mu.Lock()
	defer announcer.mu.Unlock()
	if len(announcer.enqueued) != 1 {
		t.Fatalf("expected 1 announcement, got %d", len(announcer.enqueued))
	}
	if announcer.enqueued[0].Text != "Rita Costa, Consultório 1" {
		t.Errorf("unexpected announcement %q", announcer.enqueued[0].Text)
	}
}

func TestCallConflictCarriesCurrentStatus(t *testing.T) {
	r, _, _ := newPatientRouter()

	resp := doJSON(t, r, "POST", "/patients", map[string]string{"patient_name": "Sérgio Dias"})
	var rec models.PatientRecord
	json.Unmarshal(resp.Body.Bytes(), &rec)

	move := map[string]interface{}{
		"from_status": "waiting-triage",
		"destination": map[string]string{"queue": "waiting-doctor", "label": "Consultório 2"},
	}
	if resp := doJSON(t, r, "POST", "/patients/"+rec.ID.String()+"/call", move); resp.Code != http.StatusOK {
		t.Fatalf("first call: %d", resp.Code)
	}

	resp = doJSON(t, r, "POST", "/patients/"+rec.ID.String()+"/call", move)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}

	var body map[string]string
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body["current_status"] != "waiting-doctor" {
		t.Errorf("conflict response must carry current_status, got %q", body["current_status"])
	}
}

func TestForwardDoesNotAnnounceLocally(t *testing.T) {
	r, _, announcer := newPatientRouter()

	resp := doJSON(t, r, "POST", "/patients", map[string]string{"patient_name": "Vera Pinto"})
	var rec models.PatientRecord
	json.Unmarshal(resp.Body.Bytes(), &rec)

	resp = doJSON(t, r, "POST", "/patients/"+rec.ID.String()+"/forward", map[string]interface{}{
		"from_status": "waiting-triage",
		"destination": map[string]string{"queue": "waiting-ward", "label": "Enfermaria"},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body)
	}

	announcer.mu.Lock()
	defer announcer.mu.Unlock()
	if len(announcer.enqueued) != 0 {
		t.Error("forward must not announce at the origin station")
	}
}

func TestFinishSilentCancelsAnnouncement(t *testing.T) {
	r, _, announcer := newPatientRouter()

	resp := doJSON(t, r, "POST", "/patients", map[string]string{"patient_name": "Xuxa Prado"})
	var rec models.PatientRecord
	json.Unmarshal(resp.Body.Bytes(), &rec)

	resp = doJSON(t, r, "POST", "/patients/"+rec.ID.String()+"/finish-silent", map[string]interface{}{
		"from_status": "waiting-triage",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body)
	}

	announcer.mu.Lock()
	defer announcer.mu.Unlock()
	if len(announcer.cancelled) != 1 || announcer.cancelled[0] != rec.ID {
		t.Error("finish-silent must cancel any queued announcement for the patient")
	}
}

func TestMoveUnknownPatientReturns404(t *testing.T) {
	r, _, _ := newPatientRouter()
	resp := doJSON(t, r, "POST", "/patients/"+uuid.NewString()+"/call", map[string]interface{}{
		"from_status": "waiting-triage",
		"destination": map[string]string{"queue": "waiting-doctor"},
	})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestMoveBadIDReturns400(t *testing.T) {
	r, _, _ := newPatientRouter()
	resp := doJSON(t, r, "POST", "/patients/not-a-uuid/call", map[string]interface{}{
		"from_status": "waiting-triage",
		"destination": map[string]string{"queue": "waiting-doctor"},
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	r, store, _ := newPatientRouter()

	store.Insert(context.Background(), &models.PatientRecord{
		ID: uuid.New(), Name: "Na Triagem", Status: models.StatusWaitingTriage,
		Priority: models.PriorityNormal, CreatedAt: time.Now(),
	})
	store.Insert(context.Background(), &models.PatientRecord{
		ID: uuid.New(), Name: "No Consultório", Status: models.StatusWaitingDoctor,
		Priority: models.PriorityNormal, CreatedAt: time.Now(),
	})

	resp := doJSON(t, r, "GET", "/patients?status=waiting-doctor", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		Patients []models.PatientRecord `json:"patients"`
		Count    int                    `json:"count"`
	}
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body.Count != 1 || body.Patients[0].Name != "No Consultório" {
		t.Errorf("unexpected listing %+v", body)
	}

	if resp := doJSON(t, r, "GET", "/patients?status=nope", nil); resp.Code != http.StatusBadRequest {
		t.Errorf("invalid status filter must 400, got %d", resp.Code)
	}
}
