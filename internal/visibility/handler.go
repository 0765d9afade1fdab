package visibility

import (
	"errors"
	"net/http"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/http/httpx"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// Handler provides the admin settings and patient portal endpoints.
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

type consultRequest struct {
	Concern string `json:"concern" validate:"required,max=2000"`
}

type consultResponse struct {
	Recommendation string `json:"recommendation"`
	Fallback       bool   `json:"fallback"`
}

// GetSettings handles GET /admin/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	settings, err := h.svc.Settings(r.Context(), actor)
	if err != nil {
		h.writeErr(w, "get settings", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles PUT /admin/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req UpdateSettingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	settings, err := h.svc.UpdateSettings(r.Context(), actor, req)
	if err != nil {
		h.writeErr(w, "update settings", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, settings)
}

// Sessions handles GET /portal/sessions?patient_id=.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	patientID := r.URL.Query().Get("patient_id")
	if patientID == "" && actor.Role != access.RolePatient {
		httpx.WriteError(w, http.StatusBadRequest, "patient_id required")
		return
	}
	views, err := h.svc.PatientSessions(r.Context(), actor, patientID)
	if err != nil {
		h.writeErr(w, "list sessions", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": views, "count": len(views)})
}

// Consult handles POST /portal/consultation.
func (h *Handler) Consult(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req consultRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome, err := h.svc.Consult(r.Context(), actor, req.Concern)
	if err != nil {
		h.writeErr(w, "consult", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, consultResponse{Recommendation: outcome.Text, Fallback: outcome.Fallback})
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case access.IsDenied(err):
		httpx.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrConsultationDisabled):
		httpx.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrConcernRequired):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("visibility handler failed", "op", op, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
