package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Source identifies this service on every envelope.
const Source = "medpulse-connect"

// Event is a versioned domain event that knows its own routing.
type Event interface {
	// EventType is "<name>.v<N>".
	EventType() string
	// Routing returns the clinic and the aggregate key ("appointment:<id>").
	Routing() (orgID, aggregate string)
}

// Envelope is what lands in the outbox payload column and on the queue.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	Source        string          `json:"source"`
	OrgID         string          `json:"org_id"`
	Aggregate     string          `json:"aggregate"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

type EnvelopeOption func(*Envelope)

func WithEventID(id uuid.UUID) EnvelopeOption {
	return func(e *Envelope) {
		if id != uuid.Nil {
			e.EventID = id
		}
	}
}

// WithOccurredAt stamps the envelope with the transition time instead of now.
func WithOccurredAt(ts time.Time) EnvelopeOption {
	return func(e *Envelope) {
		if !ts.IsZero() {
			e.OccurredAt = ts.UTC()
		}
	}
}

var (
	ErrNilEvent    = errors.New("events: event required")
	ErrUntyped     = errors.New("events: event type missing")
	ErrUnroutable  = errors.New("events: aggregate is required")
	errExecMissing = errors.New("events: exec required")

	nowFunc = time.Now
)

// schemaVersion reads the trailing ".vN" of an event type; 1 when absent.
func schemaVersion(eventType string) int {
	i := strings.LastIndex(eventType, ".v")
	if i < 0 {
		return 1
	}
	n, err := strconv.Atoi(eventType[i+2:])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// NewEnvelope wraps evt for transport.
func NewEnvelope(evt Event, opts ...EnvelopeOption) (Envelope, error) {
	if evt == nil {
		return Envelope{}, ErrNilEvent
	}
	eventType := strings.TrimSpace(evt.EventType())
	if eventType == "" {
		return Envelope{}, ErrUntyped
	}
	orgID, aggregate := evt.Routing()
	if strings.TrimSpace(aggregate) == "" {
		return Envelope{}, ErrUnroutable
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s payload: %w", eventType, err)
	}

	env := Envelope{
		EventID:       uuid.New(),
		EventType:     eventType,
		SchemaVersion: schemaVersion(eventType),
		Source:        Source,
		OrgID:         strings.TrimSpace(orgID),
		Aggregate:     strings.TrimSpace(aggregate),
		OccurredAt:    nowFunc().UTC(),
		Payload:       payload,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&env)
		}
	}
	return env, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Append writes evt to the outbox through exec, which may be a pool or an
// open transaction.
func Append(ctx context.Context, exec execer, evt Event, opts ...EnvelopeOption) (Envelope, error) {
	if exec == nil {
		return Envelope{}, errExecMissing
	}
	env, err := NewEnvelope(evt, opts...)
	if err != nil {
		return Envelope{}, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal envelope: %w", err)
	}
	const query = `
		INSERT INTO outbox (id, org_id, aggregate, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := exec.Exec(ctx, query, env.EventID, env.OrgID, env.Aggregate, env.EventType, data, env.OccurredAt); err != nil {
		return Envelope{}, fmt.Errorf("events: append %s: %w", env.EventType, err)
	}
	return env, nil
}
