package middleware

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/http/httpx"
	"github.com/medpulse/medpulse-connect/internal/tenancy"
)

// CognitoConfig holds AWS Cognito configuration for JWT validation.
type CognitoConfig struct {
	Region     string
	UserPoolID string
	ClientID   string
	// JWKSURL overrides the pool's well-known key endpoint.
	JWKSURL string
}

func (c CognitoConfig) configured() bool {
	return c.Region != "" && c.UserPoolID != ""
}

func (c CognitoConfig) issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// CognitoClaims represents the claims in a Cognito ID or access token.
// Clinic roles are Cognito groups; the clinic is a custom attribute.
type CognitoClaims struct {
	jwt.RegisteredClaims
	Email         string   `json:"email"`
	CognitoGroups []string `json:"cognito:groups"`
	TokenUse      string   `json:"token_use"`
	ClientID      string   `json:"client_id"`
	OrgID         string   `json:"custom:org_id"`
}

// Actor maps the highest-privilege recognised group onto a role.
func (c *CognitoClaims) Actor() (access.Actor, bool) {
	if c.Subject == "" {
		return access.Actor{}, false
	}
	var role access.Role
	for _, want := range []access.Role{access.RoleAdmin, access.RoleDoctor, access.RolePatient} {
		for _, g := range c.CognitoGroups {
			if access.Role(strings.ToLower(g)) == want {
				role = want
				break
			}
		}
		if role != "" {
			break
		}
	}
	if role == "" {
		return access.Actor{}, false
	}
	return access.Actor{Role: role, UserID: c.Subject, OrgID: tenancy.Normalize(c.OrgID)}, true
}

func (c *CognitoClaims) audienceOK(clientID string) bool {
	if clientID == "" {
		return true
	}
	switch c.TokenUse {
	case "access":
		return c.ClientID == clientID
	case "id":
		aud, _ := c.GetAudience()
		for _, a := range aud {
			if a == clientID {
				return true
			}
		}
		return false
	}
	return false
}

// keySet caches a pool's RSA signing keys by kid.
type keySet struct {
	url    string
	client *http.Client
	ttl    time.Duration

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

func newKeySet(url string) *keySet {
	return &keySet{url: url, client: &http.Client{Timeout: 10 * time.Second}, ttl: time.Hour}
}

func (k *keySet) key(kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	key, ok := k.keys[kid]
	fresh := time.Now().Before(k.expires)
	k.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	keys, err := k.fetch()
	if err != nil {
		return nil, err
	}
	k.mu.Lock()
	k.keys = keys
	k.expires = time.Now().Add(k.ttl)
	k.mu.Unlock()

	if key, ok := keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("key %s not found in JWKS", kid)
}

type jwkKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k *keySet) fetch() (map[string]*rsa.PublicKey, error) {
	resp, err := k.client.Get(k.url)
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS request failed with status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwkKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode JWKS: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, jwk := range doc.Keys {
		if jwk.Kty != "RSA" {
			continue
		}
		if pub, err := parseRSAPublicKey(jwk.N, jwk.E); err == nil {
			keys[jwk.Kid] = pub
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no valid RSA keys found in JWKS")
	}
	return keys, nil
}

func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}

// CognitoJWT validates RS256 tokens issued by the clinic's user pool and
// stores the mapped actor in the request context.
func CognitoJWT(cfg CognitoConfig) func(http.Handler) http.Handler {
	if !cfg.configured() {
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				httpx.WriteError(w, http.StatusUnauthorized, "cognito auth not configured")
			})
		}
	}
	issuer := cfg.issuer()
	jwksURL := cfg.JWKSURL
	if jwksURL == "" {
		jwksURL = issuer + "/.well-known/jwks.json"
	}
	keys := newKeySet(jwksURL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			claims := &CognitoClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				kid, _ := t.Header["kid"].(string)
				if kid == "" {
					return nil, fmt.Errorf("missing key id")
				}
				return keys.key(kid)
			}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if !claims.audienceOK(cfg.ClientID) {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid audience")
				return
			}
			actor, ok := claims.Actor()
			if !ok {
				httpx.WriteError(w, http.StatusForbidden, "user is not in a clinic group")
				return
			}
			next.ServeHTTP(w, withActor(r, actor))
		})
	}
}

// ActorAuth routes RS256 tokens with a key id to Cognito and everything else
// to the shared-secret validator.
func ActorAuth(cognitoCfg CognitoConfig, secret string) func(http.Handler) http.Handler {
	cognitoMW := CognitoJWT(cognitoCfg)
	secretMW := ActorJWT(secret)

	return func(next http.Handler) http.Handler {
		viaCognito := cognitoMW(next)
		viaSecret := secretMW(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			if cognitoCfg.configured() {
				if token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{}); err == nil {
					if _, hasKid := token.Header["kid"]; hasKid && token.Method.Alg() == "RS256" {
						viaCognito.ServeHTTP(w, r)
						return
					}
				}
			}
			viaSecret.ServeHTTP(w, r)
		})
	}
}
