package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/appointments"
	httpmiddleware "github.com/medpulse/medpulse-connect/internal/http/middleware"
	"github.com/medpulse/medpulse-connect/internal/notify"
	"github.com/medpulse/medpulse-connect/internal/patients"
	"github.com/medpulse/medpulse-connect/internal/sessions"
	"github.com/medpulse/medpulse-connect/internal/visibility"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

const testSecret = "router-secret"

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()

	logger := logging.Discard()
	gate := access.NewGate()

	patientRepo := patients.NewInMemoryRepository()
	directory := patients.NewDirectory(patientRepo)
	store := notify.NewMemoryStore()
	notifier := notify.NewLifecycleNotifier(notify.NewCascade(nil), store, directory, logger)

	apptRepo := appointments.NewMemoryRepository()
	sessionRepo := sessions.NewMemoryRepository()
	apptSvc := appointments.NewService(apptRepo, gate, logger).
		WithNotifier(notifier).
		WithSessionLookup(sessions.NewLookup(sessionRepo)).
		WithSynchronousCascade()

	sessionSvc := sessions.NewService(sessionRepo, apptSvc, gate, logger)
	visibilitySvc := visibility.NewService(visibility.NewMemoryStore(), sessionSvc, gate, logger)

	cfg := &Config{
		Logger:        logger,
		Appointments:  appointments.NewHandler(apptSvc, logger),
		Notifications: notify.NewHandler(store, apptSvc, gate, logger),
		Sessions:      sessions.NewHandler(sessionSvc, logger),
		Visibility:    visibility.NewHandler(visibilitySvc, logger),
		Patients:      patients.NewHandler(patients.NewService(patientRepo, notifier, logger), logger),
		AuthSecret:    testSecret,
		DefaultOrgID:  "default-clinic",
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg)
}

func token(t *testing.T, role access.Role, userID, orgID string) string {
	t.Helper()
	claims := httpmiddleware.ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role:  string(role),
		OrgID: orgID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func do(h http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := do(router, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterReadyReportsDependencyFailure(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.Ready = func(context.Context) error { return errors.New("postgres down") }
	})

	if rr := do(router, http.MethodGet, "/ready", "", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}

func TestRouterPatientRegistrationUsesOrgHeader(t *testing.T) {
	router := newTestRouter(t, nil)

	body, _ := json.Marshal(map[string]any{"name": "Ana Lima", "phone": "+15550001111"})
	req := httptest.NewRequest(http.MethodPost, "/patients/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(orgHeader, "Clinic-East")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	var resp struct {
		Patient patients.Patient `json:"patient"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Patient.OrgID != "clinic-east" {
		t.Errorf("expected org from header, got %q", resp.Patient.OrgID)
	}
}

func TestRouterRequiresAuthForLifecycleRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, path := range []string{"/appointments", "/notifications", "/portal/sessions", "/admin/settings"} {
		if rr := do(router, http.MethodGet, path, "", nil); rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rr.Code)
		}
	}
}

func TestRouterBookAndListNotifications(t *testing.T) {
	router := newTestRouter(t, nil)
	admin := token(t, access.RoleAdmin, "admin-1", "clinic-1")

	rr := do(router, http.MethodPost, "/appointments", admin, map[string]any{
		"patient_id": "pat-1",
		"date_time":  time.Now().Add(72 * time.Hour).UTC().Truncate(time.Hour),
		"type":       "Botox Injection",
		"staff_id":   "dr-1",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("book: expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	var appt appointments.Appointment
	if err := json.NewDecoder(rr.Body).Decode(&appt); err != nil {
		t.Fatalf("decode appointment: %v", err)
	}
	if appt.OrgID != "clinic-1" {
		t.Errorf("expected appointment scoped to token org, got %q", appt.OrgID)
	}

	rr = do(router, http.MethodGet, "/appointments/"+appt.ID+"/notifications", admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("notifications: expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var list struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if list.Count == 0 {
		t.Errorf("expected booking notifications to be recorded")
	}
}

func TestRouterRejectsCrossClinicHeader(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, access.RoleAdmin, "admin-1", "clinic-1"))
	req.Header.Set(orgHeader, "clinic-2")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
}

func TestRouterRoleGroups(t *testing.T) {
	router := newTestRouter(t, nil)

	cases := []struct {
		name   string
		bearer string
		method string
		path   string
		want   int
	}{
		{"doctor settings", token(t, access.RoleDoctor, "dr-1", "clinic-1"), http.MethodGet, "/admin/settings", http.StatusForbidden},
		{"admin settings", token(t, access.RoleAdmin, "admin-1", "clinic-1"), http.MethodGet, "/admin/settings", http.StatusOK},
		{"patient sessions", token(t, access.RolePatient, "pat-1", "clinic-1"), http.MethodPost, "/sessions", http.StatusForbidden},
		{"patient portal", token(t, access.RolePatient, "pat-1", "clinic-1"), http.MethodGet, "/portal/sessions", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rr := do(router, tc.method, tc.path, tc.bearer, nil); rr.Code != tc.want {
				t.Fatalf("expected status %d, got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestRouterWithoutAuthConfigOnlyServesPublicRoutes(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) { cfg.AuthSecret = "" })

	if rr := do(router, http.MethodGet, "/appointments", "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without auth config, got %d", rr.Code)
	}
	if rr := do(router, http.MethodGet, "/health", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected health to stay public, got %d", rr.Code)
	}
}
