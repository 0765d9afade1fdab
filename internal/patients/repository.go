package patients

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for patient storage
type Repository interface {
	Create(ctx context.Context, req *RegisterRequest) (*Patient, error)
	GetByID(ctx context.Context, id string) (*Patient, error)
}

// InMemoryRepository keeps patients in a map
type InMemoryRepository struct {
	mu       sync.RWMutex
	patients map[string]*Patient
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		patients: make(map[string]*Patient),
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, req *RegisterRequest) (*Patient, error) {
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
		CreatedAt:     time.Now().UTC(),
	}

	r.mu.Lock()
	r.patients[p.ID] = p
	r.mu.Unlock()

	cp := *p
	return &cp, nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}
