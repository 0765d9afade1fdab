package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/http/httpx"
	"github.com/medpulse/medpulse-connect/internal/tenancy"
)

// ActorClaims is the HMAC token issued to clinic staff and patients by the
// auth collaborator. Subject carries the user id.
type ActorClaims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	OrgID string `json:"org_id"`
}

// Actor converts validated claims into the acting identity.
func (c ActorClaims) Actor() (access.Actor, bool) {
	role := access.Role(strings.ToLower(strings.TrimSpace(c.Role)))
	if !role.Valid() || strings.TrimSpace(c.Subject) == "" {
		return access.Actor{}, false
	}
	return access.Actor{Role: role, UserID: c.Subject, OrgID: tenancy.Normalize(c.OrgID)}, true
}

// ActorJWT validates an HMAC-signed bearer token and stores the actor and
// its org in the request context.
func ActorJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "auth disabled")
				return
			}
			tokenString, ok := bearerToken(r)
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			claims := ActorClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			actor, ok := claims.Actor()
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "token carries no usable role")
				return
			}
			next.ServeHTTP(w, withActor(r, actor))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return token, token != ""
}

func withActor(r *http.Request, actor access.Actor) *http.Request {
	ctx := access.WithActor(r.Context(), actor)
	if actor.OrgID != "" {
		ctx = tenancy.WithOrgID(ctx, actor.OrgID)
	}
	return r.WithContext(ctx)
}
