package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ruteravelar/filavoz/internal/models"
	"github.com/ruteravelar/filavoz/internal/schedule"
)

type ScheduleHandler struct {
	store *schedule.Store
}

func NewScheduleHandler(store *schedule.Store) *ScheduleHandler {
	return &ScheduleHandler{store: store}
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rule models.ScheduledMessage
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if rule.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text_content required"})
		return
	}
	if rule.IntervalMinutes <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "interval_minutes must be positive"})
		return
	}

	if err := h.store.Create(r.Context(), &rule); err != nil {
		respondScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.List(r.Context())
	if err != nil {
		respondScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"scheduled_messages": rules, "count": len(rules)})
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	rule, err := h.store.Get(r.Context(), id)
	if err != nil {
		respondScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var rule models.ScheduledMessage
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	rule.ID = id

	if err := h.store.Update(r.Context(), &rule); err != nil {
		respondScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		respondScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func respondScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrRuleNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
