package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/medpulse/medpulse-connect/internal/appointments"
)

// Lookup tells the appointment service whether a visit has been logged.
type Lookup struct {
	repo Repository
}

var _ appointments.SessionLookup = (*Lookup)(nil)

func NewLookup(repo Repository) *Lookup {
	if repo == nil {
		panic("sessions: repository required")
	}
	return &Lookup{repo: repo}
}

func (l *Lookup) HasSession(ctx context.Context, appointmentID string) (bool, error) {
	_, err := l.repo.GetByAppointment(ctx, appointmentID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("sessions: lookup: %w", err)
	}
}
