package appointments

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/http/httpx"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// Handler exposes the appointment workflow over HTTP. An access.Actor must be
// present in the request context (see middleware.ActorAuth).
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("appointments: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the endpoints under /appointments.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.book)
	r.Post("/suggest", h.suggest)
	r.Get("/stats", h.stats)
	r.Get("/conflicts", h.conflicts)
	r.Get("/{appointmentID}", h.get)
	r.Post("/{appointmentID}/verify", h.verify)
	r.Post("/{appointmentID}/reject", h.reject)
	r.Post("/{appointmentID}/cancel", h.cancel)
}

type suggestRequest struct {
	PatientID string    `json:"patient_id"`
	DateTime  time.Time `json:"date_time" validate:"required"`
	Type      string    `json:"type" validate:"required"`
}

type bookRequest struct {
	PatientID        string    `json:"patient_id" validate:"required"`
	DateTime         time.Time `json:"date_time" validate:"required"`
	Type             string    `json:"type" validate:"required"`
	StaffID          string    `json:"staff_id" validate:"required"`
	OverrideConflict bool      `json:"override_conflict"`
}

type verifyRequest struct {
	StaffID          string     `json:"staff_id" validate:"required"`
	DateTime         *time.Time `json:"date_time"`
	OverrideConflict bool       `json:"override_conflict"`
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

type conflictResponse struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Warning ConflictWarning `json:"warning"`
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req suggestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	appt, err := h.svc.Suggest(r.Context(), actor, SuggestInput{PatientID: req.PatientID, DateTime: req.DateTime, Type: req.Type})
	if err != nil {
		h.writeErr(w, "suggest", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, appt)
}

func (h *Handler) book(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	appt, err := h.svc.Book(r.Context(), actor, BookInput{
		PatientID:        req.PatientID,
		DateTime:         req.DateTime,
		Type:             req.Type,
		StaffID:          req.StaffID,
		OverrideConflict: req.OverrideConflict,
	})
	if err != nil {
		h.writeErr(w, "book", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, appt)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	appt, err := h.svc.Verify(r.Context(), actor, VerifyInput{
		AppointmentID:    chi.URLParam(r, "appointmentID"),
		StaffID:          req.StaffID,
		DateTime:         req.DateTime,
		OverrideConflict: req.OverrideConflict,
	})
	if err != nil {
		h.writeErr(w, "verify", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.confirmed(w, r, "reject", h.svc.Reject)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.confirmed(w, r, "cancel", h.svc.Cancel)
}

func (h *Handler) confirmed(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, actor access.Actor, id string, confirm ConfirmFunc) (*Appointment, error)) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	appt, err := fn(r.Context(), actor, chi.URLParam(r, "appointmentID"), ConfirmWith(req.Confirm))
	if err != nil {
		h.writeErr(w, op, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Get(r.Context(), actor, chi.URLParam(r, "appointmentID"))
	if err != nil {
		h.writeErr(w, "get", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := Filter{StaffID: q.Get("staff_id"), PatientID: q.Get("patient_id")}
	for _, s := range q["status"] {
		st := Status(s)
		if !st.Valid() {
			httpx.WriteError(w, http.StatusBadRequest, "unknown status "+s)
			return
		}
		filter.Statuses = append(filter.Statuses, st)
	}

	items, err := h.svc.List(r.Context(), actor, filter)
	if err != nil {
		h.writeErr(w, "list", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"appointments": items,
		"count":        len(items),
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	stats, err := h.svc.Stats(r.Context(), actor)
	if err != nil {
		h.writeErr(w, "stats", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) conflicts(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	when, err := time.Parse(time.RFC3339, q.Get("date_time"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "date_time must be RFC3339")
		return
	}
	warning, err := h.svc.CheckConflict(r.Context(), actor, q.Get("staff_id"), when, q.Get("exclude_id"))
	if err != nil {
		h.writeErr(w, "conflicts", err)
		return
	}
	body := map[string]any{"conflict": warning != nil}
	if warning != nil {
		body["warning"] = warning
		body["message"] = warning.Message()
	}
	httpx.WriteJSON(w, http.StatusOK, body)
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		httpx.WriteJSON(w, http.StatusConflict, conflictResponse{
			Error:   "staff_conflict",
			Message: conflict.Warning.Message(),
			Warning: conflict.Warning,
		})
		return
	}
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("appointments handler failed", "op", op, "error", err)
		httpx.WriteError(w, status, "internal error")
		return
	}
	httpx.WriteError(w, status, err.Error())
}

// HTTPStatus maps workflow errors to response codes.
func HTTPStatus(err error) int {
	var conflict *ConflictError
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case access.IsDenied(err):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotConfirmed):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func actorOrUnauthorized(w http.ResponseWriter, r *http.Request) (access.Actor, bool) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return access.Actor{}, false
	}
	return actor, true
}
