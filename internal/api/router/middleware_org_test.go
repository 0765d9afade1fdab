package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/tenancy"
)

func TestResolveOrgIDPassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := tenancy.OrgIDFromContext(r.Context())
		if !ok || orgID != "org-abc" {
			t.Fatalf("expected org id propagated, got %s / %v", orgID, ok)
		}
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(orgHeader, "Org-ABC")
	rr := httptest.NewRecorder()
	resolveOrgID("default-clinic")(next).ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected downstream status, got %d", rr.Code)
	}
}

func TestResolveOrgIDFallsBackToDefault(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = tenancy.OrgIDFromContext(r.Context())
	})

	resolveOrgID("default-clinic")(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))
	if got != "default-clinic" {
		t.Fatalf("expected default org, got %q", got)
	}
}

func TestResolveOrgIDMissingEverywhere(t *testing.T) {
	rr := httptest.NewRecorder()
	resolveOrgID("")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing org, got %d", rr.Code)
	}
}

func TestRequireActorOrgFillsMissingOrg(t *testing.T) {
	var actor access.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ = access.ActorFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(orgHeader, "clinic-7")
	req = req.WithContext(access.WithActor(req.Context(), access.Actor{Role: access.RoleAdmin, UserID: "admin-1"}))
	requireActorOrg("default-clinic")(next).ServeHTTP(httptest.NewRecorder(), req)

	if actor.OrgID != "clinic-7" {
		t.Fatalf("expected header org on actor, got %q", actor.OrgID)
	}
}
