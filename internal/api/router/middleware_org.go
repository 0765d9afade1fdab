package router

import (
	"net/http"
	"strings"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/http/httpx"
	"github.com/medpulse/medpulse-connect/internal/tenancy"
)

const orgHeader = "X-Org-Id"

// resolveOrgID scopes unauthenticated requests to the clinic named in the
// X-Org-Id header, falling back to the deployment's default clinic.
func resolveOrgID(defaultOrg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID := strings.TrimSpace(r.Header.Get(orgHeader))
			if orgID == "" {
				orgID = defaultOrg
			}
			if tenancy.Normalize(orgID) == "" {
				httpx.WriteError(w, http.StatusBadRequest, "missing X-Org-Id")
				return
			}
			next.ServeHTTP(w, r.WithContext(tenancy.WithOrgID(r.Context(), orgID)))
		})
	}
}

// requireActorOrg runs after auth. A token bound to one clinic cannot be
// replayed against another through the header.
func requireActorOrg(defaultOrg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := access.ActorFromContext(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			header := tenancy.Normalize(r.Header.Get(orgHeader))
			if actor.OrgID != "" && header != "" && header != actor.OrgID {
				httpx.WriteError(w, http.StatusForbidden, "token is not valid for this clinic")
				return
			}
			if actor.OrgID == "" {
				orgID := header
				if orgID == "" {
					orgID = tenancy.Normalize(defaultOrg)
				}
				actor.OrgID = orgID
				ctx := access.WithActor(tenancy.WithOrgID(r.Context(), orgID), actor)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
