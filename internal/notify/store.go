package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a notification does not exist or is no longer pending.
var ErrNotFound = errors.New("notify: notification not found")

// Store persists notification records.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	ListByAppointment(ctx context.Context, appointmentID string) ([]*Notification, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Notification, error)
	DeletePendingByAppointment(ctx context.Context, appointmentID string) (int, error)
	// ListDue returns pending reminders that are due and ready for another
	// attempt as of asOf, oldest due first. Exhausted reminders are skipped.
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]*Notification, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	// MarkFailed records a failed delivery attempt. The reminder becomes ready
	// again at retryAt; a zero retryAt marks it exhausted.
	MarkFailed(ctx context.Context, id string, cause string, retryAt time.Time) error
}

// MemoryStore is an in-process Store that preserves insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	items []*Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n.Clone())
	return nil
}

func (s *MemoryStore) ListByAppointment(_ context.Context, appointmentID string) ([]*Notification, error) {
	return s.filter(func(n *Notification) bool { return n.AppointmentID == appointmentID }), nil
}

func (s *MemoryStore) ListByPatient(_ context.Context, patientID string) ([]*Notification, error) {
	return s.filter(func(n *Notification) bool { return n.PatientID == patientID }), nil
}

func (s *MemoryStore) DeletePendingByAppointment(_ context.Context, appointmentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	removed := 0
	for _, n := range s.items {
		if n.AppointmentID == appointmentID && n.Status == StatusPending {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	s.items = kept
	return removed, nil
}

func (s *MemoryStore) ListDue(_ context.Context, asOf time.Time, limit int) ([]*Notification, error) {
	due := s.filter(func(n *Notification) bool {
		return n.Status == StatusPending && n.DueAt != nil && !n.Exhausted && !n.readyAt().After(asOf)
	})
	sort.SliceStable(due, func(i, j int) bool { return due[i].DueAt.Before(*due[j].DueAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.items {
		if n.ID == id && n.Status == StatusPending {
			n.Status = StatusSent
			n.SentAt = at.UTC().Format(time.RFC3339)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) MarkFailed(_ context.Context, id string, cause string, retryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.items {
		if n.ID != id || n.Status != StatusPending {
			continue
		}
		n.Attempts++
		n.LastError = cause
		if retryAt.IsZero() {
			n.Exhausted = true
			n.NextAttemptAt = nil
			return nil
		}
		next := retryAt.UTC()
		n.NextAttemptAt = &next
		return nil
	}
	return ErrNotFound
}

func (s *MemoryStore) filter(keep func(*Notification) bool) []*Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Notification
	for _, n := range s.items {
		if keep(n) {
			out = append(out, n.Clone())
		}
	}
	return out
}
