package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const appointmentColumns = `id, org_id, patient_id, date_time, type, status, assigned_staff_id, is_verified, original_suggested_time, created_at, updated_at`

// PostgresRepository stores appointments in the appointments table.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("appointments: db required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *Appointment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.OrgID, a.PatientID, a.DateTime, a.Type, string(a.Status), a.AssignedStaffID,
		a.IsVerified, a.OriginalSuggestedTime, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("appointments: create: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET date_time = $2, status = $3, assigned_staff_id = $4, is_verified = $5,
			original_suggested_time = $6, updated_at = $7
		WHERE id = $1`,
		a.ID, a.DateTime, string(a.Status), a.AssignedStaffID, a.IsVerified, a.OriginalSuggestedTime, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("appointments: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.OrgID != "" {
		add("org_id = $%d", f.OrgID)
	}
	if f.StaffID != "" {
		add("assigned_staff_id = $%d", f.StaffID)
	}
	if f.PatientID != "" {
		add("patient_id = $%d", f.PatientID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a        Appointment
		status   string
		original *time.Time
	)
	if err := row.Scan(&a.ID, &a.OrgID, &a.PatientID, &a.DateTime, &a.Type, &status,
		&a.AssignedStaffID, &a.IsVerified, &original, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.OriginalSuggestedTime = original
	return &a, nil
}
