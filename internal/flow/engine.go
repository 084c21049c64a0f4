// Package flow validates and applies patient moves between station queues.
// Every state-changing action is one atomic conditional write; the engine
// holds no cross-request memory.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ruteravelar/filavoz/internal/models"
	"github.com/ruteravelar/filavoz/internal/realtime"
)

// DefaultDedupeWindow bounds the registration data-quality guard. It is not
// a strict key constraint; homonymous patients outside the window register
// normally.
const DefaultDedupeWindow = 10 * time.Minute

// Destination names where a called or forwarded patient should go.
type Destination struct {
	Queue models.Status `json:"queue"`
	Label string        `json:"label"` // free text shown and announced, e.g. "Consultório 1"
}

type Engine struct {
	store        Store
	feed         realtime.Feed
	dedupeWindow time.Duration
	now          func() time.Time
}

func NewEngine(store Store, feed realtime.Feed) *Engine {
	return &Engine{
		store:        store,
		feed:         feed,
		dedupeWindow: DefaultDedupeWindow,
		now:          time.Now,
	}
}

// Register creates a record in the triage queue. An active record with an
// equivalent name inside the dedupe window fails with
// ErrDuplicateRegistration.
func (e *Engine) Register(ctx context.Context, name string, priority models.Priority) (*models.PatientRecord, error) {
	if name == "" {
		return nil, fmt.Errorf("patient name required")
	}
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("invalid priority %q", priority)
	}

	dup, err := e.store.HasActiveByName(ctx, name, e.now().Add(-e.dedupeWindow))
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateRegistration
	}

	rec := &models.PatientRecord{
		ID:        uuid.New(),
		Name:      name,
		CallType:  models.CallTypeRegistered,
		Status:    models.StatusWaitingTriage,
		Priority:  priority,
		CreatedAt: e.now(),
	}
	if err := e.store.Insert(ctx, rec); err != nil {
		return nil, err
	}

	e.publish(ctx, rec, "register")
	return rec, nil
}

// Call moves the patient into the destination queue and stamps called_at.
// from is the status the caller last observed; a stale read surfaces as
// ConflictError.
func (e *Engine) Call(ctx context.Context, id uuid.UUID, from models.Status, dest Destination, origin string) (*models.PatientRecord, error) {
	rec, err := e.move(ctx, id, from, Update{
		Status:        dest.Queue,
		CallType:      models.CallTypeCalled,
		Destination:   dest.Label,
		OriginStation: origin,
		StampCalled:   true,
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, rec, "call")
	return rec, nil
}

// Recall re-stamps called_at without changing queues, so the station can
// re-announce a patient who did not show up.
func (e *Engine) Recall(ctx context.Context, id uuid.UUID) (*models.PatientRecord, error) {
	cur, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cur.Active() {
		return nil, &ConflictError{PatientID: id, Expected: cur.Status, Actual: models.StatusCompleted}
	}

	rec, err := e.move(ctx, id, cur.Status, Update{
		Status:        cur.Status,
		CallType:      models.CallTypeCalled,
		Destination:   cur.Destination,
		OriginStation: cur.OriginStation,
		StampCalled:   true,
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, rec, "recall")
	return rec, nil
}

// Forward moves the patient to the destination queue. With announce=false
// the move is silent: call_type is marked so downstream watchers never push
// an announcement for it.
func (e *Engine) Forward(ctx context.Context, id uuid.UUID, from models.Status, dest Destination, origin string, announce bool) (*models.PatientRecord, error) {
	callType := models.CallTypeForwarded
	if !announce {
		callType = models.CallTypeSilent
	}

	rec, err := e.move(ctx, id, from, Update{
		Status:        dest.Queue,
		CallType:      callType,
		Destination:   dest.Label,
		OriginStation: origin,
		StampCalled:   true,
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, rec, "forward")
	return rec, nil
}

// Finish completes the patient and stamps completed_at.
func (e *Engine) Finish(ctx context.Context, id uuid.UUID, from models.Status) (*models.PatientRecord, error) {
	rec, err := e.move(ctx, id, from, Update{
		Status:         models.StatusCompleted,
		CallType:       models.CallTypeCalled,
		StampCompleted: true,
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, rec, "finish")
	return rec, nil
}

// FinishWithoutCall completes the patient silently. Suppressing any queued
// announcement for the patient is the caller's job (the pipeline exposes
// CancelPatient for it).
func (e *Engine) FinishWithoutCall(ctx context.Context, id uuid.UUID, from models.Status) (*models.PatientRecord, error) {
	rec, err := e.move(ctx, id, from, Update{
		Status:         models.StatusCompleted,
		CallType:       models.CallTypeSilent,
		StampCompleted: true,
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, rec, "finish-silent")
	return rec, nil
}

// Queue returns a station's waiting list in dequeue order.
func (e *Engine) Queue(ctx context.Context, status models.Status) ([]models.PatientRecord, error) {
	records, err := e.store.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	models.SortQueue(records)
	return records, nil
}

// ListActive returns every non-completed patient, for station snapshots.
func (e *Engine) ListActive(ctx context.Context) ([]models.PatientRecord, error) {
	return e.store.ListActive(ctx)
}

func (e *Engine) move(ctx context.Context, id uuid.UUID, from models.Status, upd Update) (*models.PatientRecord, error) {
	if !upd.Status.Valid() {
		return nil, fmt.Errorf("invalid destination status %q", upd.Status)
	}

	rec, err := e.store.Move(ctx, id, from, upd)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Zero rows: either the record is gone or somebody moved it first.
	cur, getErr := e.store.Get(ctx, id)
	if getErr != nil {
		return nil, ErrNotFound
	}
	return nil, &ConflictError{PatientID: id, Expected: from, Actual: cur.Status}
}

func (e *Engine) publish(ctx context.Context, rec *models.PatientRecord, action string) {
	ev := realtime.Event{
		PatientID: rec.ID,
		Status:    rec.Status,
		Action:    action,
		At:        e.now(),
	}
	if err := e.feed.Publish(ctx, ev); err != nil {
		slog.Error("failed to publish change event", "error", err, "patient_id", rec.ID, "action", action)
	}
}
