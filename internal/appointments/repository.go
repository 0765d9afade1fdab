package appointments

import (
	"context"
	"sync"
)

// Repository persists appointments.
type Repository interface {
	Create(ctx context.Context, appt *Appointment) error
	Update(ctx context.Context, appt *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	List(ctx context.Context, filter Filter) ([]*Appointment, error)
}

// MemoryRepository keeps appointments in insertion order. Returned values are copies.
type MemoryRepository struct {
	mu    sync.RWMutex
	order []string
	items map[string]*Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*Appointment)}
}

func (r *MemoryRepository) Create(_ context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[appt.ID]; !exists {
		r.order = append(r.order, appt.ID)
	}
	r.items[appt.ID] = appt.Clone()
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[appt.ID]; !ok {
		return ErrNotFound
	}
	r.items[appt.ID] = appt.Clone()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return appt.Clone(), nil
}

func (r *MemoryRepository) List(_ context.Context, filter Filter) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Appointment, 0, len(r.order))
	for _, id := range r.order {
		appt := r.items[id]
		if filter.Matches(appt) {
			out = append(out, appt.Clone())
		}
	}
	return out, nil
}
