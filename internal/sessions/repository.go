package sessions

import (
	"context"
	"sort"
	"sync"
)

// Repository persists session records. At most one record exists per appointment.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
	GetByAppointment(ctx context.Context, appointmentID string) (*Record, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Record, error)
}

type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*Record)}
}

func (r *MemoryRepository) Create(_ context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.AppointmentID == rec.AppointmentID {
			return ErrAlreadyLogged
		}
	}
	cp := *rec
	r.records[rec.ID] = &cp
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *MemoryRepository) GetByAppointment(_ context.Context, appointmentID string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.AppointmentID == appointmentID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListByPatient returns the patient's sessions, newest first.
func (r *MemoryRepository) ListByPatient(_ context.Context, patientID string) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Record
	for _, rec := range r.records {
		if rec.PatientID == patientID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}
