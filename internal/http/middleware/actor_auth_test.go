package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/tenancy"
)

func serve(mw func(http.Handler) http.Handler, token string, next http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	return rec
}

func okHandler(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func TestActorJWTMissingSecret(t *testing.T) {
	rec := serve(ActorJWT(""), signedActorToken(t, "secret", "admin", "admin-1"), okHandler)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestActorJWTMissingHeader(t *testing.T) {
	rec := serve(ActorJWT("secret"), "", okHandler)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestActorJWTInvalidSignature(t *testing.T) {
	rec := serve(ActorJWT("secret"), signedActorToken(t, "wrong", "admin", "admin-1"), okHandler)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestActorJWTUnknownRole(t *testing.T) {
	rec := serve(ActorJWT("secret"), signedActorToken(t, "secret", "receptionist", "u-1"), okHandler)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestActorJWTStoresActorAndOrg(t *testing.T) {
	called := false
	rec := serve(ActorJWT("secret"), signedActorToken(t, "secret", "Doctor", "dr-1"), func(w http.ResponseWriter, r *http.Request) {
		called = true
		actor, ok := access.ActorFromContext(r.Context())
		if !ok {
			t.Fatalf("expected actor in context")
		}
		if actor.Role != access.RoleDoctor || actor.UserID != "dr-1" || actor.OrgID != "clinic-1" {
			t.Fatalf("unexpected actor: %+v", actor)
		}
		if org, _ := tenancy.OrgIDFromContext(r.Context()); org != "clinic-1" {
			t.Fatalf("expected org scope, got %q", org)
		}
		w.WriteHeader(http.StatusOK)
	})

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func signedActorToken(t *testing.T, secret, role, subject string) string {
	t.Helper()
	claims := ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
		Role:  role,
		OrgID: "Clinic-1",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
