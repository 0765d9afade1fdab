package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/appointments"
	"github.com/medpulse/medpulse-connect/internal/http/httpx"
	httpmiddleware "github.com/medpulse/medpulse-connect/internal/http/middleware"
	"github.com/medpulse/medpulse-connect/internal/notify"
	"github.com/medpulse/medpulse-connect/internal/patients"
	"github.com/medpulse/medpulse-connect/internal/sessions"
	"github.com/medpulse/medpulse-connect/internal/visibility"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger        *logging.Logger
	Appointments  *appointments.Handler
	Notifications *notify.Handler
	Sessions      *sessions.Handler
	Visibility    *visibility.Handler
	Patients      *patients.Handler

	AuthSecret   string
	Cognito      httpmiddleware.CognitoConfig
	DefaultOrgID string

	PublicRateLimit float64
	PublicRateBurst int

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Ready reports dependency health for /ready. Nil means always ready.
	Ready func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		public.Get("/ready", ready(cfg.Ready))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Patients != nil {
			register := public.With(resolveOrgID(cfg.DefaultOrgID))
			if cfg.PublicRateLimit > 0 {
				register = register.With(httpmiddleware.RateLimit(cfg.PublicRateLimit, cfg.PublicRateBurst))
			}
			register.Post("/patients/register", cfg.Patients.Register)
		}
	})

	if cfg.AuthSecret == "" && cfg.Cognito.UserPoolID == "" {
		return r
	}

	r.Group(func(authed chi.Router) {
		authed.Use(httpmiddleware.ActorAuth(cfg.Cognito, cfg.AuthSecret))
		authed.Use(requireActorOrg(cfg.DefaultOrgID))

		if cfg.Appointments != nil {
			authed.Route("/appointments", func(r chi.Router) {
				cfg.Appointments.RegisterRoutes(r)
				if cfg.Notifications != nil {
					r.Get("/{appointmentID}/notifications", cfg.Notifications.ListForAppointment)
				}
			})
		}
		if cfg.Notifications != nil {
			authed.Get("/notifications", cfg.Notifications.ListForPatient)
		}
		if cfg.Sessions != nil {
			authed.With(requireRoles(access.RoleAdmin, access.RoleDoctor)).Route("/sessions", cfg.Sessions.RegisterRoutes)
		}
		if cfg.Visibility != nil {
			authed.Route("/portal", func(r chi.Router) {
				r.Get("/sessions", cfg.Visibility.Sessions)
				r.Post("/consultation", cfg.Visibility.Consult)
			})
			authed.Route("/admin", func(r chi.Router) {
				r.Use(requireRoles(access.RoleAdmin))
				r.Get("/settings", cfg.Visibility.GetSettings)
				r.Put("/settings", cfg.Visibility.UpdateSettings)
			})
		}
	})

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func ready(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
