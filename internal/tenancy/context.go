// Package tenancy carries the clinic (org) scope of a request.
package tenancy

import (
	"context"
	"strings"
)

type ctxKey string

const orgKey ctxKey = "medpulse.org_id"

// Normalize trims and lowercases an org id so header and token values agree.
func Normalize(orgID string) string {
	return strings.ToLower(strings.TrimSpace(orgID))
}

// WithOrgID stores the normalized org id in context.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgKey, Normalize(orgID))
}

// OrgIDFromContext extracts the org id if present.
func OrgIDFromContext(ctx context.Context) (string, bool) {
	orgID, ok := ctx.Value(orgKey).(string)
	return orgID, ok && orgID != ""
}

// OrgIDOrDefault returns the scoped org id, or fallback when none is set.
func OrgIDOrDefault(ctx context.Context, fallback string) string {
	if orgID, ok := OrgIDFromContext(ctx); ok {
		return orgID
	}
	return Normalize(fallback)
}
