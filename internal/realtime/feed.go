// Package realtime delivers patient change events to subscribed station
// views. Delivery may be duplicated or reordered; consumers re-read the
// store on every event, so handling is idempotent.
package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ruteravelar/filavoz/internal/models"
)

// Event describes one committed change to a patient record.
type Event struct {
	PatientID uuid.UUID     `json:"patient_id"`
	Status    models.Status `json:"status"`
	Action    string        `json:"action"`
	At        time.Time     `json:"at"`
}

// Feed is the facility-scoped change feed.
type Feed interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe returns a channel of events and a cancel function that
	// releases the subscription and closes the channel.
	Subscribe(ctx context.Context) (<-chan Event, func(), error)
}
