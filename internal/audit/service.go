// Package audit keeps a queryable trail of operator actions on patient
// records. Clinics answer "who called this patient and when" from here.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// Entry is one operator action to record.
type Entry struct {
	Operator  string
	Station   string
	Action    string
	PatientID *uuid.UUID
	Details   map[string]interface{}
	IPAddress string
}

// Record is a stored audit row.
type Record struct {
	ID        int64           `json:"id"`
	Operator  string          `json:"operator"`
	Station   string          `json:"station,omitempty"`
	Action    string          `json:"action"`
	PatientID *uuid.UUID      `json:"patient_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	IPAddress string          `json:"ip_address,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (s *Service) Log(ctx context.Context, entry Entry) error {
	details, _ := json.Marshal(entry.Details)

	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_logs (operator, station, action, patient_id, details, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Operator, entry.Station, entry.Action, entry.PatientID, details, entry.IPAddress)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Query filters List. Zero values are ignored.
type Query struct {
	Action    string
	PatientID *uuid.UUID
	Start     *time.Time
	End       *time.Time
	Limit     int
	Offset    int
}

func (s *Service) List(ctx context.Context, q Query) ([]Record, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}

	query := `SELECT id, operator, station, action, patient_id, details, ip_address, created_at
		 FROM audit_logs WHERE true`
	args := []interface{}{}
	argIdx := 1

	if q.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, q.Action)
		argIdx++
	}
	if q.PatientID != nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argIdx)
		args = append(args, *q.PatientID)
		argIdx++
	}
	if q.Start != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *q.Start)
		argIdx++
	}
	if q.End != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *q.End)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Operator, &rec.Station, &rec.Action,
			&rec.PatientID, &rec.Details, &rec.IPAddress, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
