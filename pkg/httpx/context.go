package httpx

import (
	"context"

	"github.com/tramita/portal/pkg/tokenx"
)

type ctxKey int

const (
	ctxKeyClaims ctxKey = iota
	ctxKeyUserID
	ctxKeyRole
)

// WithIdentity attaches the verified session claims to the context.
// Only the gate calls this; handlers read via the From* helpers.
func WithIdentity(ctx context.Context, claims tokenx.Claims) context.Context {
	ctx = context.WithValue(ctx, ctxKeyClaims, claims)
	ctx = context.WithValue(ctx, ctxKeyUserID, claims.Subject)
	ctx = context.WithValue(ctx, ctxKeyRole, claims.Role)
	return ctx
}

// ClaimsFromContext returns the session claims attached by the gate.
func ClaimsFromContext(ctx context.Context) (tokenx.Claims, bool) {
	claims, ok := ctx.Value(ctxKeyClaims).(tokenx.Claims)
	return claims, ok
}

// UserIDFromContext returns the authenticated subject ID, "" if the
// request reached the handler on a public route without credentials.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyUserID).(string)
	return id
}

// RoleFromContext returns the authenticated subject's role.
func RoleFromContext(ctx context.Context) tokenx.Role {
	role, _ := ctx.Value(ctxKeyRole).(tokenx.Role)
	return role
}
