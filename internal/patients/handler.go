package patients

import (
	"errors"
	"net/http"

	"github.com/medpulse/medpulse-connect/internal/http/httpx"
	"github.com/medpulse/medpulse-connect/internal/notify"
	"github.com/medpulse/medpulse-connect/internal/tenancy"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// Handler serves patient self-registration.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type registerResponse struct {
	Patient *Patient             `json:"patient"`
	Welcome *notify.Notification `json:"welcome,omitempty"`
}

// Register handles POST /patients/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "missing org context")
		return
	}
	req.OrgID = orgID

	p, welcome, err := h.svc.Register(r.Context(), &req)
	switch {
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrMissingContact), errors.Is(err, ErrMissingOrgID):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to register patient", "org_id", orgID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to register patient")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, registerResponse{Patient: p, Welcome: welcome})
}
