package httpx

import (
	"context"

	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

type ctxKey int

const claimsKey ctxKey = iota

// WithClaims stores verified access-token claims on ctx.
func WithClaims(ctx context.Context, c jwtx.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the claims put there by AuthnMiddleware.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(jwtx.Claims)
	return c, ok
}

// SubjectFromContext is the "sub" of the authenticated caller, or "".
func SubjectFromContext(ctx context.Context) string {
	c, _ := ClaimsFromContext(ctx)
	return c.Subject
}
