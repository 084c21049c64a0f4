package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ruteravelar/filavoz/internal/announce"
	"github.com/ruteravelar/filavoz/internal/audit"
	"github.com/ruteravelar/filavoz/internal/auth"
	"github.com/ruteravelar/filavoz/internal/flow"
	"github.com/ruteravelar/filavoz/internal/models"
)

// Announcer is the pipeline surface the handlers use.
type Announcer interface {
	Enqueue(req models.AnnouncementRequest)
	CancelPatient(id uuid.UUID)
}

// Auditor records operator actions. A nil auditor disables the trail.
type Auditor interface {
	Log(ctx context.Context, entry audit.Entry) error
}

type PatientHandler struct {
	engine    *flow.Engine
	announcer Announcer
	auditor   Auditor
}

func NewPatientHandler(engine *flow.Engine, announcer Announcer, auditor Auditor) *PatientHandler {
	return &PatientHandler{engine: engine, announcer: announcer, auditor: auditor}
}

type registerRequest struct {
	Name     string          `json:"patient_name"`
	Priority models.Priority `json:"priority,omitempty"`
}

func (h *PatientHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "patient_name required"})
		return
	}

	rec, err := h.engine.Register(r.Context(), req.Name, req.Priority)
	if err != nil {
		respondFlowError(w, err)
		return
	}

	h.auditLog(r, "register", rec)
	writeJSON(w, http.StatusCreated, rec)
}

func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.Status(r.URL.Query().Get("status"))

	if status == "" {
		records, err := h.engine.ListActive(r.Context())
		if err != nil {
			respondFlowError(w, err)
			return
		}
		models.SortQueue(records)
		writeJSON(w, http.StatusOK, map[string]interface{}{"patients": records, "count": len(records)})
		return
	}

	if !status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}
	records, err := h.engine.Queue(r.Context(), status)
	if err != nil {
		respondFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"patients": records, "count": len(records)})
}

type moveRequest struct {
	From        models.Status    `json:"from_status"`
	Destination flow.Destination `json:"destination"`
	Station     string           `json:"station,omitempty"`
	Repeat      int              `json:"repeat,omitempty"`
	Announce    *bool            `json:"announce,omitempty"`
}

func (h *PatientHandler) Call(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.decodeMove(w, r)
	if !ok {
		return
	}

	rec, err := h.engine.Call(r.Context(), id, req.From, req.Destination, req.Station)
	if err != nil {
		respondFlowError(w, err)
		return
	}

	h.announceCall(rec, req.Repeat)
	h.auditLog(r, "call", rec)
	writeJSON(w, http.StatusOK, rec)
}

func (h *PatientHandler) Recall(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	rec, err := h.engine.Recall(r.Context(), id)
	if err != nil {
		respondFlowError(w, err)
		return
	}

	h.announceCall(rec, 1)
	h.auditLog(r, "recall", rec)
	writeJSON(w, http.StatusOK, rec)
}

func (h *PatientHandler) Forward(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.decodeMove(w, r)
	if !ok {
		return
	}

	announceArrival := true
	if req.Announce != nil {
		announceArrival = *req.Announce
	}

	rec, err := h.engine.Forward(r.Context(), id, req.From, req.Destination, req.Station, announceArrival)
	if err != nil {
		respondFlowError(w, err)
		return
	}
	// The destination station's watcher announces the arrival; nothing to
	// enqueue here.
	h.auditLog(r, "forward", rec)
	writeJSON(w, http.StatusOK, rec)
}

func (h *PatientHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.finish(w, r, false)
}

func (h *PatientHandler) FinishSilent(w http.ResponseWriter, r *http.Request) {
	h.finish(w, r, true)
}

func (h *PatientHandler) finish(w http.ResponseWriter, r *http.Request, silent bool) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var rec *models.PatientRecord
	var err error
	action := "finish"
	if silent {
		action = "finish-silent"
		rec, err = h.engine.FinishWithoutCall(r.Context(), id, req.From)
		if err == nil {
			h.announcer.CancelPatient(id)
		}
	} else {
		rec, err = h.engine.Finish(r.Context(), id, req.From)
	}
	if err != nil {
		respondFlowError(w, err)
		return
	}

	h.auditLog(r, action, rec)
	writeJSON(w, http.StatusOK, rec)
}

// auditLog is best-effort: a failed insert is logged, never surfaced.
func (h *PatientHandler) auditLog(r *http.Request, action string, rec *models.PatientRecord) {
	if h.auditor == nil {
		return
	}

	id := rec.ID
	entry := audit.Entry{
		Action:    action,
		PatientID: &id,
		IPAddress: r.RemoteAddr,
		Details: map[string]interface{}{
			"status":      rec.Status,
			"destination": rec.Destination,
		},
	}
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		entry.Operator = claims.Sub
		entry.Station = claims.Station
	}

	if err := h.auditor.Log(r.Context(), entry); err != nil {
		slog.Warn("audit log write failed", "error", err, "action", action)
	}
}

func (h *PatientHandler) announceCall(rec *models.PatientRecord, repeat int) {
	id := rec.ID
	h.announcer.Enqueue(models.AnnouncementRequest{
		Text:      announce.CallText(rec.Name, rec.Destination),
		Repeat:    repeat,
		Source:    models.SourcePatientCall,
		Priority:  rec.Priority,
		PatientID: &id,
	})
}

func (h *PatientHandler) decodeMove(w http.ResponseWriter, r *http.Request) (uuid.UUID, moveRequest, bool) {
	id, ok := parseID(w, r)
	if !ok {
		return uuid.Nil, moveRequest{}, false
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return uuid.Nil, moveRequest{}, false
	}
	if !req.From.Valid() || !req.Destination.Queue.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from_status and destination.queue required"})
		return uuid.Nil, moveRequest{}, false
	}
	return id, req, true
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid patient ID"})
		return uuid.Nil, false
	}
	return id, true
}

// respondFlowError maps engine errors onto HTTP statuses. Conflicts tell the
// operator to re-read and retry; they are never absorbed server-side.
func respondFlowError(w http.ResponseWriter, err error) {
	var conflict *flow.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":          conflict.Error(),
			"current_status": string(conflict.Actual),
		})
	case errors.Is(err, flow.ErrDuplicateRegistration):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, flow.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
