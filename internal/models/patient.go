package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Priority orders patients within a queue. Emergency always outranks
// priority, which outranks normal; ties break FIFO by CreatedAt.
type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityPriority  Priority = "priority"
	PriorityEmergency Priority = "emergency"
)

// Weight returns the ordering weight of a priority; higher plays first.
func (p Priority) Weight() int {
	switch p {
	case PriorityEmergency:
		return 2
	case PriorityPriority:
		return 1
	default:
		return 0
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityPriority, PriorityEmergency:
		return true
	}
	return false
}

// Status is the queue a patient currently belongs to. A patient has exactly
// one status at a time (single-queue rule).
type Status string

const (
	StatusWaitingTriage   Status = "waiting-triage"
	StatusWaitingDoctor   Status = "waiting-doctor"
	StatusWaitingECG      Status = "waiting-ecg"
	StatusWaitingDressing Status = "waiting-dressing"
	StatusWaitingXRay     Status = "waiting-xray"
	StatusWaitingWard     Status = "waiting-ward"
	StatusCompleted       Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusWaitingTriage, StatusWaitingDoctor, StatusWaitingECG,
		StatusWaitingDressing, StatusWaitingXRay, StatusWaitingWard,
		StatusCompleted:
		return true
	}
	return false
}

// CallType records how the patient last changed queues. The watcher uses it
// to pick the arrival sound and to honor silent forwards.
type CallType string

const (
	CallTypeRegistered CallType = "registered"
	CallTypeCalled     CallType = "called"
	CallTypeForwarded  CallType = "forwarded"
	CallTypeSilent     CallType = "silent"
)

type PatientRecord struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Name          string     `json:"patient_name" db:"patient_name"`
	CallType      CallType   `json:"call_type" db:"call_type"`
	Status        Status     `json:"status" db:"status"`
	Priority      Priority   `json:"priority" db:"priority"`
	Destination   string     `json:"destination,omitempty" db:"destination"`
	OriginStation string     `json:"origin_station,omitempty" db:"origin_station"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	CalledAt      *time.Time `json:"called_at,omitempty" db:"called_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

func (p PatientRecord) Active() bool { return p.Status != StatusCompleted }

// SortQueue orders a queue snapshot for dequeueing: emergency before priority
// before normal, stable FIFO by CreatedAt within a tier.
func SortQueue(records []PatientRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		wi, wj := records[i].Priority.Weight(), records[j].Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}

// Station is a processing stage patients queue at. Expected is the status
// that places a patient in this station's queue.
type Station struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Expected Status `json:"expected_status"`
}

// DefaultStations covers the standard clinic flow: registration feeds triage,
// triage feeds the physician, the physician feeds ancillary sectors.
func DefaultStations() []Station {
	return []Station{
		{ID: "triagem", Name: "Triagem", Expected: StatusWaitingTriage},
		{ID: "consultorio", Name: "Consultório", Expected: StatusWaitingDoctor},
		{ID: "ecg", Name: "Eletrocardiograma", Expected: StatusWaitingECG},
		{ID: "curativo", Name: "Sala de Curativos", Expected: StatusWaitingDressing},
		{ID: "raiox", Name: "Raio-X", Expected: StatusWaitingXRay},
		{ID: "enfermaria", Name: "Enfermaria", Expected: StatusWaitingWard},
	}
}
