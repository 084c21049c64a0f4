package models

import "github.com/google/uuid"

// AnnouncementSource identifies what produced an announcement request.
type AnnouncementSource string

const (
	SourcePatientCall    AnnouncementSource = "patient-call"
	SourceForwardedAlert AnnouncementSource = "forwarded-alert"
	SourceScheduled      AnnouncementSource = "scheduled"
	SourceCustom         AnnouncementSource = "custom"
)

// AnnouncementRequest is a unit of work for the voice pipeline. Priority only
// selects the alert tone on displays; the audio channel itself is strictly
// FIFO regardless of priority.
type AnnouncementRequest struct {
	Text         string             `json:"text"`
	Voice        string             `json:"voice,omitempty"`
	SpeakingRate float64            `json:"speaking_rate,omitempty"`
	Repeat       int                `json:"repeat,omitempty"`
	Source       AnnouncementSource `json:"source"`
	Priority     Priority           `json:"priority,omitempty"`
	PatientID    *uuid.UUID         `json:"patient_id,omitempty"`
}
