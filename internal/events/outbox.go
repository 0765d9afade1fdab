package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medpulse/medpulse-connect/internal/appointments"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// DefaultMaxAttempts bounds how often a failing entry is retried before it
// is parked for manual inspection.
const DefaultMaxAttempts = 10

// DB is the subset of pgxpool.Pool the outbox uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxEntry is one undelivered envelope.
type OutboxEntry struct {
	ID        uuid.UUID
	OrgID     string
	Aggregate string
	Type      string
	Payload   json.RawMessage
	Attempts  int
	CreatedAt time.Time
}

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

// OutboxStore is the Postgres-backed transactional outbox. It implements
// appointments.EventRecorder.
type OutboxStore struct {
	db          DB
	maxAttempts int
}

var _ appointments.EventRecorder = (*OutboxStore)(nil)

func NewOutboxStore(db DB) *OutboxStore {
	if db == nil {
		panic("events: db required")
	}
	return &OutboxStore{db: db, maxAttempts: DefaultMaxAttempts}
}

func (s *OutboxStore) WithMaxAttempts(n int) *OutboxStore {
	if n > 0 {
		s.maxAttempts = n
	}
	return s
}

// Record appends the lifecycle event for a committed transition.
func (s *OutboxStore) Record(ctx context.Context, t appointments.Transition) error {
	_, err := Append(ctx, s.db, LifecycleFromTransition(t), WithOccurredAt(t.OccurredAt))
	return err
}

// FetchPending returns undelivered entries oldest first, skipping ones that
// exhausted their attempts.
func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	const query = `
		SELECT id, org_id, aggregate, event_type, payload, attempts, created_at
		FROM outbox
		WHERE delivered_at IS NULL AND attempts < $1
		ORDER BY created_at, id
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, s.maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var (
			entry   OutboxEntry
			payload []byte
		)
		if err := rows.Scan(&entry.ID, &entry.OrgID, &entry.Aggregate, &entry.Type, &payload, &entry.Attempts, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Payload = json.RawMessage(append([]byte(nil), payload...))
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("events: iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkDelivered reports false when the entry was already delivered.
func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := s.db.Exec(ctx, `UPDATE outbox SET delivered_at = now() WHERE id = $1 AND delivered_at IS NULL`, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// MarkFailed bumps the attempt counter and keeps the last error text.
func (s *OutboxStore) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := s.db.Exec(ctx, `UPDATE outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, id, msg); err != nil {
		return fmt.Errorf("events: mark failed: %w", err)
	}
	return nil
}

type pendingStore interface {
	FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
}

// Deliverer polls the outbox and hands each entry to the handler.
type Deliverer struct {
	store     pendingStore
	handler   DeliveryHandler
	logger    *logging.Logger
	batchSize int32
	interval  time.Duration
}

func NewDeliverer(store pendingStore, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		handler:   handler,
		logger:    logger,
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// Start drains on every tick until ctx is cancelled.
func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain delivers one batch and returns how many entries were marked
// delivered. An entry whose aggregate already failed in this batch is
// deferred so per-appointment order holds.
func (d *Deliverer) Drain(ctx context.Context) int {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return 0
	}
	blocked := make(map[string]bool)
	delivered := 0
	for _, entry := range entries {
		if blocked[entry.Aggregate] {
			continue
		}
		if err := d.handler.Handle(ctx, entry); err != nil {
			blocked[entry.Aggregate] = true
			d.logger.Warn("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.Type, "attempt", entry.Attempts+1)
			if markErr := d.store.MarkFailed(ctx, entry.ID, err); markErr != nil {
				d.logger.Error("outbox failure not recorded", "error", markErr, "event_id", entry.ID)
			}
			continue
		}
		ok, err := d.store.MarkDelivered(ctx, entry.ID)
		switch {
		case err != nil:
			d.logger.Error("outbox mark delivered failed", "error", err, "event_id", entry.ID)
		case ok:
			delivered++
			d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.Type)
		}
	}
	return delivered
}
