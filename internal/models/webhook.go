package models

import (
	"time"

	"github.com/google/uuid"
)

// Webhook is an outbound integration subscription: an external system (HIS,
// reception panel, BI export) that wants patient-flow events pushed to it.
// An empty Events list subscribes to everything.
type Webhook struct {
	ID        uuid.UUID `json:"id" db:"id"`
	URL       string    `json:"url" db:"url"`
	Events    []string  `json:"events" db:"events"`
	Secret    string    `json:"secret,omitempty" db:"secret"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
