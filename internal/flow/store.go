package flow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ruteravelar/filavoz/internal/models"
)

// Update describes the fields a transition writes. Status transitions go
// through Move, which applies the update only when the expected prior status
// still holds.
type Update struct {
	Status         models.Status
	CallType       models.CallType
	Destination    string
	OriginStation  string
	StampCalled    bool
	StampCompleted bool
}

// Store is the persistence boundary of the transition engine. The
// conditional Move is the single-queue invariant's enforcement point: the
// backing store applies it atomically against the current row state.
type Store interface {
	Insert(ctx context.Context, rec *models.PatientRecord) error
	Get(ctx context.Context, id uuid.UUID) (*models.PatientRecord, error)
	// HasActiveByName reports whether an active record with this name was
	// created at or after since.
	HasActiveByName(ctx context.Context, name string, since time.Time) (bool, error)
	// Move applies upd to the record only if its status still equals from.
	// It returns ErrNotFound when no row matched.
	Move(ctx context.Context, id uuid.UUID, from models.Status, upd Update) (*models.PatientRecord, error)
	ListByStatus(ctx context.Context, status models.Status) ([]models.PatientRecord, error)
	ListActive(ctx context.Context) ([]models.PatientRecord, error)
}
