package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const recordColumns = `id, org_id, appointment_id, patient_id, doctor_id, logged_at, summary, results,
		       next_session_date, care_instructions, treatment_type`

// SQLRepository stores sessions in Postgres through database/sql and lib/pq.
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	if db == nil {
		panic("sessions: db required")
	}
	return &SQLRepository{db: db}
}

// Create inserts rec. The unique index on appointment_id enforces one
// session per appointment.
func (r *SQLRepository) Create(ctx context.Context, rec *Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.OrgID, rec.AppointmentID, rec.PatientID, rec.DoctorID, rec.Timestamp,
		rec.Summary, rec.Results, nullTime(rec), rec.CareInstructions, rec.TreatmentType)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrAlreadyLogged
	}
	if err != nil {
		return fmt.Errorf("sessions: insert: %w", err)
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("sessions: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepository) GetByAppointment(ctx context.Context, appointmentID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM sessions WHERE appointment_id = $1`, appointmentID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: get by appointment: %w", err)
	}
	return rec, nil
}

func (r *SQLRepository) ListByPatient(ctx context.Context, patientID string) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM sessions WHERE patient_id = $1
		ORDER BY logged_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("sessions: list by patient: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sessions: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec  Record
		next pq.NullTime
	)
	if err := s.Scan(&rec.ID, &rec.OrgID, &rec.AppointmentID, &rec.PatientID, &rec.DoctorID, &rec.Timestamp,
		&rec.Summary, &rec.Results, &next, &rec.CareInstructions, &rec.TreatmentType); err != nil {
		return nil, err
	}
	if next.Valid {
		t := next.Time
		rec.NextSessionDate = &t
	}
	return &rec, nil
}

func nullTime(rec *Record) pq.NullTime {
	if rec.NextSessionDate == nil {
		return pq.NullTime{}
	}
	return pq.NullTime{Time: *rec.NextSessionDate, Valid: true}
}
