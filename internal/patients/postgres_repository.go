package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patients in the relational database.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("patients: db required")
	}
	return &PostgresRepository{db: db}
}

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, req *RegisterRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := &Patient{
		ID:            uuid.New().String(),
		OrgID:         req.OrgID,
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.TrimSpace(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		WhatsAppOptIn: req.optIn(),
	}
	query := `
		INSERT INTO patients (id, org_id, name, email, phone, whatsapp_opt_in)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.db.QueryRow(ctx, query,
		p.ID,
		p.OrgID,
		p.Name,
		p.Email,
		p.Phone,
		p.WhatsAppOptIn,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("patients: insert failed: %w", err)
	}
	p.CreatedAt = createdAt
	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	query := `
		SELECT id, org_id, name, email, phone, whatsapp_opt_in, created_at
		FROM patients
		WHERE id = $1
	`
	var p Patient
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.OrgID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.WhatsAppOptIn,
		&p.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("patients: select failed: %w", err)
	}
	return &p, nil
}
