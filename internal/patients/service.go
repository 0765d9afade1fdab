package patients

import (
	"context"

	"github.com/medpulse/medpulse-connect/internal/notify"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// Welcomer records the welcome message for a new patient.
type Welcomer interface {
	Welcome(ctx context.Context, r notify.Recipient) *notify.Notification
}

// Service handles patient self-registration.
type Service struct {
	repo     Repository
	welcomer Welcomer
	cache    *CachedDirectory
	logger   *logging.Logger
}

func NewService(repo Repository, welcomer Welcomer, logger *logging.Logger) *Service {
	if repo == nil {
		panic("patients: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, welcomer: welcomer, logger: logger}
}

// WithCache seeds c with each new registration.
func (s *Service) WithCache(c *CachedDirectory) *Service {
	s.cache = c
	return s
}

// Register creates the patient and records a welcome notification. The
// welcome never fails registration.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*Patient, *notify.Notification, error) {
	p, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("patient registered", "patient_id", p.ID, "org_id", p.OrgID)

	if s.cache != nil {
		s.cache.Put(p.Recipient())
	}
	if s.welcomer == nil {
		return p, nil, nil
	}
	return p, s.welcomer.Welcome(ctx, p.Recipient()), nil
}
