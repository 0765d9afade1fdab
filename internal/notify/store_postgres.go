package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	notificationInsertColumns = `id, org_id, patient_id, appointment_id, type, channel, content, sent_at, status, due_at, text_source, created_at`
	notificationColumns       = notificationInsertColumns + `, attempts, last_error, next_attempt_at, exhausted`
)

// PostgresStore stores notifications in the notifications table.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("notify: db required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, n *Notification) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (`+notificationInsertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		n.ID, n.OrgID, n.PatientID, n.AppointmentID, string(n.Type), string(n.Channel), n.Content,
		n.SentAt, string(n.Status), n.DueAt, string(n.TextSource), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("notify: create notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByAppointment(ctx context.Context, appointmentID string) ([]*Notification, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE appointment_id = $1
		ORDER BY created_at ASC, id ASC`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("notify: list by appointment: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string) ([]*Notification, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE patient_id = $1
		ORDER BY created_at DESC, id ASC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("notify: list by patient: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (s *PostgresStore) DeletePendingByAppointment(ctx context.Context, appointmentID string) (int, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM notifications
		WHERE appointment_id = $1 AND status = 'pending'`, appointmentID)
	if err != nil {
		return 0, fmt.Errorf("notify: delete pending: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE status = 'pending' AND due_at <= $1
		  AND NOT exhausted
		  AND COALESCE(next_attempt_at, due_at) <= $1
		ORDER BY due_at ASC, id ASC
		LIMIT $2`, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: list due: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// MarkSent transitions a notification from pending to sent.
func (s *PostgresStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications SET status = 'sent', sent_at = $1
		WHERE id = $2 AND status = 'pending'`, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("notify: mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed bumps the attempt counter. A zero retryAt exhausts the reminder.
func (s *PostgresStore) MarkFailed(ctx context.Context, id string, cause string, retryAt time.Time) error {
	var next *time.Time
	if !retryAt.IsZero() {
		at := retryAt.UTC()
		next = &at
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications
		SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3, exhausted = $4
		WHERE id = $1 AND status = 'pending'`, id, cause, next, next == nil)
	if err != nil {
		return fmt.Errorf("notify: mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanNotifications(rows pgx.Rows) ([]*Notification, error) {
	var out []*Notification
	for rows.Next() {
		var (
			n                    Notification
			typ, channel, status string
			source               string
			due, next            *time.Time
		)
		if err := rows.Scan(&n.ID, &n.OrgID, &n.PatientID, &n.AppointmentID, &typ, &channel,
			&n.Content, &n.SentAt, &status, &due, &source, &n.CreatedAt,
			&n.Attempts, &n.LastError, &next, &n.Exhausted); err != nil {
			return nil, fmt.Errorf("notify: scan notification: %w", err)
		}
		n.Type = Type(typ)
		n.Channel = Channel(channel)
		n.Status = Status(status)
		n.DueAt = due
		n.NextAttemptAt = next
		n.TextSource = TextSource(source)
		out = append(out, &n)
	}
	return out, rows.Err()
}
