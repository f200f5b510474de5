package httpx

import (
	"net/http"
	"runtime/debug"

	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain wraps h so that mws[0] is the outermost layer.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recover turns a handler panic into a 500 and logs the stack.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					slogx.FromContext(r.Context()).Error("handler panic",
						"panic", v,
						"stack", string(debug.Stack()),
					)
					WriteJSON(w, http.StatusInternalServerError, map[string]string{
						"error": "server_error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
