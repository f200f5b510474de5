package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// AuthnMiddleware requires a valid bearer access token. Tokens whose
// authorities are the pre-auth marker are refused: a caller half way through
// MFA is not authenticated.
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				slogx.FromContext(ctx).Warn("bearer token rejected", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			if claims.AuthoritySet().IsPreAuth() {
				slogx.FromContext(ctx).Warn("pre-auth token presented as access token",
					"sub", claims.Subject)
				writeBearerError(w, "multi-factor authentication incomplete")
				return
			}

			ctx = WithClaims(ctx, claims)
			ctx = slogx.With(ctx, "sub", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the credential from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// RFC 6750 section 3.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
