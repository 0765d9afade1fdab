package patients

import (
	"strings"
	"time"

	"github.com/medpulse/medpulse-connect/internal/notify"
)

// Patient is a registered clinic patient.
type Patient struct {
	ID            string    `json:"id"`
	OrgID         string    `json:"org_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	WhatsAppOptIn bool      `json:"whatsapp_opt_in"`
	CreatedAt     time.Time `json:"created_at"`
}

// Recipient adapts the patient for the notification pipeline.
func (p *Patient) Recipient() notify.Recipient {
	return notify.Recipient{
		ID:            p.ID,
		OrgID:         p.OrgID,
		Name:          p.Name,
		Phone:         p.Phone,
		Email:         p.Email,
		WhatsAppOptIn: p.WhatsAppOptIn,
	}
}

// RegisterRequest is the self-registration payload.
type RegisterRequest struct {
	OrgID         string `json:"-"`
	Name          string `json:"name" validate:"required,max=120"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"omitempty,e164"`
	WhatsAppOptIn *bool  `json:"whatsapp_opt_in"`
}

// Validate checks the fields the repository depends on.
func (r *RegisterRequest) Validate() error {
	if strings.TrimSpace(r.OrgID) == "" {
		return ErrMissingOrgID
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.Email) == "" && strings.TrimSpace(r.Phone) == "" {
		return ErrMissingContact
	}
	return nil
}

// optIn defaults to WhatsApp when the patient did not say otherwise.
func (r *RegisterRequest) optIn() bool {
	if r.WhatsAppOptIn == nil {
		return true
	}
	return *r.WhatsAppOptIn
}
