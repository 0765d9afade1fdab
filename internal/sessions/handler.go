package sessions

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/appointments"
	"github.com/medpulse/medpulse-connect/internal/http/httpx"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

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

// RegisterRoutes mounts the endpoints under /sessions.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.log)
	r.Post("/care-suggestion", h.careSuggestion)
}

type careRequest struct {
	Summary string `json:"summary" validate:"required"`
	Results string `json:"results"`
}

type careResponse struct {
	CareInstructions string `json:"care_instructions"`
	Fallback         bool   `json:"fallback"`
}

func (h *Handler) log(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var in LogInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.svc.Log(r.Context(), actor, in)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, rec)
}

func (h *Handler) careSuggestion(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req careRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome, err := h.svc.SuggestCareInstructions(r.Context(), actor, req.Summary, req.Results)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, careResponse{CareInstructions: outcome.Text, Fallback: outcome.Fallback})
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAlreadyLogged):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrSummaryRequired):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		status := appointments.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("sessions handler failed", "error", err)
			httpx.WriteError(w, status, "internal error")
			return
		}
		httpx.WriteError(w, status, err.Error())
	}
}
