package httpx

import (
	"net/http"
	"strings"
)

// RequireScopes demands every listed scope on the access token.
func RequireScopes(required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, _ := ClaimsFromContext(r.Context())
			for _, s := range required {
				if !c.HasScope(s) {
					writeInsufficient(w, `scope="`+strings.Join(required, " ")+`"`)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthority demands that the caller holds at least one of names.
func RequireAuthority(names ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, _ := ClaimsFromContext(r.Context())
			set := c.AuthoritySet()
			for _, n := range names {
				if set.Grants(n) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeInsufficient(w, `error_description="missing authority"`)
		})
	}
}

func writeInsufficient(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", `+detail)
	WriteJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient_scope"})
}
