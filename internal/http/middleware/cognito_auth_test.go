package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medpulse/medpulse-connect/internal/access"
)

type cognitoFixture struct {
	key    *rsa.PrivateKey
	server *httptest.Server
	cfg    CognitoConfig
}

func newCognitoFixture(t *testing.T) *cognitoFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	doc := map[string]any{"keys": []jwkKey{{
		Kid: "kid-1",
		Kty: "RSA",
		N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(intToBytes(key.PublicKey.E)),
	}}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(server.Close)
	return &cognitoFixture{
		key:    key,
		server: server,
		cfg:    CognitoConfig{Region: "us-east-1", UserPoolID: "pool-1", ClientID: "client-1", JWKSURL: server.URL},
	}
}

func (f *cognitoFixture) token(t *testing.T, groups []string, clientID string) string {
	t.Helper()
	claims := &CognitoClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			Issuer:    f.cfg.issuer(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
		CognitoGroups: groups,
		TokenUse:      "access",
		ClientID:      clientID,
		OrgID:         "clinic-9",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "kid-1"
	signed, err := token.SignedString(f.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestCognitoJWTNotConfigured(t *testing.T) {
	rec := serve(CognitoJWT(CognitoConfig{}), "anything", okHandler)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestCognitoJWTMapsGroupToRole(t *testing.T) {
	f := newCognitoFixture(t)
	var got access.Actor
	rec := serve(CognitoJWT(f.cfg), f.token(t, []string{"patient", "Admin"}, "client-1"), func(w http.ResponseWriter, r *http.Request) {
		got, _ = access.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if got.Role != access.RoleAdmin || got.UserID != "user-42" || got.OrgID != "clinic-9" {
		t.Fatalf("unexpected actor: %+v", got)
	}
}

func TestCognitoJWTRejectsWrongClient(t *testing.T) {
	f := newCognitoFixture(t)
	rec := serve(CognitoJWT(f.cfg), f.token(t, []string{"doctor"}, "other-client"), okHandler)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestCognitoJWTRejectsUserWithoutClinicGroup(t *testing.T) {
	f := newCognitoFixture(t)
	rec := serve(CognitoJWT(f.cfg), f.token(t, []string{"marketing"}, "client-1"), okHandler)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestActorAuthRoutesByTokenKind(t *testing.T) {
	f := newCognitoFixture(t)
	mw := ActorAuth(f.cfg, "secret")

	var roles []access.Role
	record := func(w http.ResponseWriter, r *http.Request) {
		actor, _ := access.ActorFromContext(r.Context())
		roles = append(roles, actor.Role)
		w.WriteHeader(http.StatusOK)
	}

	if rec := serve(mw, f.token(t, []string{"doctor"}, "client-1"), record); rec.Code != http.StatusOK {
		t.Fatalf("cognito token: expected 200, got %d", rec.Code)
	}
	if rec := serve(mw, signedActorToken(t, "secret", "patient", "pat-1"), record); rec.Code != http.StatusOK {
		t.Fatalf("secret token: expected 200, got %d", rec.Code)
	}
	if len(roles) != 2 || roles[0] != access.RoleDoctor || roles[1] != access.RolePatient {
		t.Fatalf("unexpected roles: %v", roles)
	}
}

func TestKeySetErrorsOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := newKeySet(server.URL).key("kid-1"); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func intToBytes(v int) []byte {
	if v == 0 {
		return []byte{0}
	}
	out := []byte{}
	for v > 0 {
		out = append([]byte{byte(v & 0xff)}, out...)
		v >>= 8
	}
	return out
}
