package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ruteravelar/filavoz/internal/jobs"
	"github.com/ruteravelar/filavoz/internal/models"
)

// Channel is the pipeline surface for manual announcements.
type Channel interface {
	Enqueue(req models.AnnouncementRequest)
	Busy() bool
}

type AnnouncementHandler struct {
	channel Channel
	jobs    *jobs.Client
}

func NewAnnouncementHandler(channel Channel, jobsClient *jobs.Client) *AnnouncementHandler {
	return &AnnouncementHandler{channel: channel, jobs: jobsClient}
}

type createAnnouncementRequest struct {
	Text     string          `json:"text"`
	Repeat   int             `json:"repeat,omitempty"`
	Priority models.Priority `json:"priority,omitempty"`
}

func (h *AnnouncementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAnnouncementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text required"})
		return
	}

	h.channel.Enqueue(models.AnnouncementRequest{
		Text:     req.Text,
		Repeat:   req.Repeat,
		Source:   models.SourceCustom,
		Priority: req.Priority,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *AnnouncementHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"busy": h.channel.Busy()})
}

type precacheRequest struct {
	Force bool `json:"force,omitempty"`
}

func (h *AnnouncementHandler) Precache(w http.ResponseWriter, r *http.Request) {
	var req precacheRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	if err := h.jobs.EnqueuePrecache(jobs.PrecachePayload{Force: req.Force}); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}
