package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
)

// WriteJSON writes v with the given status. Responses are never cacheable:
// most of them carry credentials.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// ParseSpaceDelimitedFields splits an OAuth2 scope string. Blank input is nil.
func ParseSpaceDelimitedFields(s string) []string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return nil
	}
	return f
}
