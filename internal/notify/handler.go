package notify

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/appointments"
	"github.com/medpulse/medpulse-connect/internal/http/httpx"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// AppointmentReader returns an appointment only if the actor may view it.
type AppointmentReader interface {
	Get(ctx context.Context, actor access.Actor, id string) (*appointments.Appointment, error)
}

// Handler serves the notification log.
type Handler struct {
	store  Store
	appts  AppointmentReader
	gate   *access.Gate
	logger *logging.Logger
}

func NewHandler(store Store, appts AppointmentReader, gate *access.Gate, logger *logging.Logger) *Handler {
	if gate == nil {
		gate = access.NewGate()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, appts: appts, gate: gate, logger: logger}
}

// ListForAppointment handles GET /appointments/{appointmentID}/notifications.
func (h *Handler) ListForAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	appt, err := h.appts.Get(r.Context(), actor, chi.URLParam(r, "appointmentID"))
	if err != nil {
		status := appointments.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("notify handler: load appointment", "error", err)
			httpx.WriteError(w, status, "internal error")
			return
		}
		httpx.WriteError(w, status, err.Error())
		return
	}

	items, err := h.store.ListByAppointment(r.Context(), appt.ID)
	if err != nil {
		h.logger.Error("notify handler: list by appointment", "appointment_id", appt.ID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"notifications": items, "count": len(items)})
}

// ListForPatient handles GET /notifications?patient_id=.
func (h *Handler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	patientID := r.URL.Query().Get("patient_id")
	if actor.Role == access.RolePatient && patientID == "" {
		patientID = actor.UserID
	}
	if patientID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "patient_id required")
		return
	}
	if err := h.gate.Authorize(actor, access.ActionViewAppointment, access.Resource{OwnerPatientID: patientID}); err != nil {
		httpx.WriteError(w, http.StatusForbidden, err.Error())
		return
	}

	items, err := h.store.ListByPatient(r.Context(), patientID)
	if err != nil {
		h.logger.Error("notify handler: list by patient", "patient_id", patientID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"notifications": items, "count": len(items)})
}
