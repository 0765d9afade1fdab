package router

import (
	"net/http"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/http/httpx"
)

// requireRoles short-circuits whole route groups that only some roles may
// reach. Per-record checks still happen in the services.
func requireRoles(roles ...access.Role) func(http.Handler) http.Handler {
	allowed := make(map[access.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := access.ActorFromContext(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				httpx.WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
