package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruteravelar/filavoz/internal/models"
)

const patientColumns = `id, patient_name, call_type, status, priority, destination, origin_station, created_at, called_at, completed_at`

// PostgresStore persists patient records in postgres. Conditional updates
// rely on the WHERE clause matching the expected status, so concurrent moves
// of the same patient resolve to exactly one winner.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, rec *models.PatientRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO patients (id, patient_name, call_type, status, priority, destination, origin_station, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Name, rec.CallType, rec.Status, rec.Priority, rec.Destination, rec.OriginStation, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.PatientRecord, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	rec, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) HasActiveByName(ctx context.Context, name string, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM patients
			WHERE lower(patient_name) = lower($1) AND status <> $2 AND created_at >= $3
		)`,
		name, models.StatusCompleted, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active registration: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Move(ctx context.Context, id uuid.UUID, from models.Status, upd Update) (*models.PatientRecord, error) {
	row := s.db.QueryRow(ctx,
		`UPDATE patients
		 SET status = $3,
		     call_type = $4,
		     destination = $5,
		     origin_station = $6,
		     called_at = CASE WHEN $7 THEN now() ELSE called_at END,
		     completed_at = CASE WHEN $8 THEN now() ELSE completed_at END
		 WHERE id = $1 AND status = $2
		 RETURNING `+patientColumns,
		id, from, upd.Status, upd.CallType, upd.Destination, upd.OriginStation,
		upd.StampCalled, upd.StampCompleted,
	)
	rec, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("move patient: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]models.PatientRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE status = $1`, status)
	if err != nil {
		return nil, fmt.Errorf("list patients by status: %w", err)
	}
	defer rows.Close()
	return collectPatients(rows)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]models.PatientRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE status <> $1`, models.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("list active patients: %w", err)
	}
	defer rows.Close()
	return collectPatients(rows)
}

func scanPatient(row pgx.Row) (*models.PatientRecord, error) {
	var rec models.PatientRecord
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.CallType, &rec.Status, &rec.Priority,
		&rec.Destination, &rec.OriginStation, &rec.CreatedAt, &rec.CalledAt, &rec.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func collectPatients(rows pgx.Rows) ([]models.PatientRecord, error) {
	var records []models.PatientRecord
	for rows.Next() {
		rec, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}
