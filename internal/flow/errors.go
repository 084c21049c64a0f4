package flow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ruteravelar/filavoz/internal/models"
)

// ErrNotFound is returned when no patient record exists for an id.
var ErrNotFound = errors.New("patient not found")

// ErrDuplicateRegistration is returned when an active record for an
// equivalent patient identity already exists inside the dedupe window.
var ErrDuplicateRegistration = errors.New("active registration already exists for this patient")

// ConflictError reports a failed compare-and-swap: another station already
// moved the patient. Callers must re-read state and retry; the intent is
// never applied over a stale read.
type ConflictError struct {
	PatientID uuid.UUID
	Expected  models.Status
	Actual    models.Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("patient %s moved concurrently: expected status %q, found %q",
		e.PatientID, e.Expected, e.Actual)
}
