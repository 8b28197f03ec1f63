package middleware

import (
	"context"

	"github.com/halcyonretail/storefront-sync/internal/session"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// IdentityFromContext returns the authenticated shopper, if any.
func IdentityFromContext(ctx context.Context) (session.Identity, bool) {
	if ctx == nil {
		return session.Identity{}, false
	}
	if ident, ok := ctx.Value(ctxIdentity).(session.Identity); ok {
		return ident, true
	}
	return session.Identity{}, false
}

// WithIdentity injects the authenticated shopper into the context.
func WithIdentity(ctx context.Context, ident session.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, ident)
}
