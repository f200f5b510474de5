package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/twostep/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket: Requests per Window, with Burst.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// Disabled reports whether the config turns limiting off.
func (c RateLimitConfig) Disabled() bool {
	return c.Requests <= 0 || c.Window <= 0
}

// Built-in profiles, from tightest to loosest. Configuration may override
// any of them.
var (
	// StrictLimit guards credential checks.
	StrictLimit = RateLimitConfig{Requests: 5, Window: time.Minute, Burst: 5}

	ModerateLimit = RateLimitConfig{Requests: 20, Window: time.Minute, Burst: 20}
	LenientLimit  = RateLimitConfig{Requests: 100, Window: time.Minute, Burst: 100}

	// PublicLimit is for unauthenticated read-only endpoints.
	PublicLimit = RateLimitConfig{Requests: 1000, Window: time.Minute, Burst: 1000}
)

// KeyExtractor groups requests into buckets. An empty key bypasses limiting.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor keys on the client address, honouring X-Forwarded-For and
// X-Real-IP when a proxy sits in front.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SubjectKeyExtractor keys on the authenticated subject. It must run
// inside AuthnMiddleware.
func SubjectKeyExtractor(r *http.Request) string {
	return SubjectFromContext(r.Context())
}

// FormFieldKeyExtractor keys on a form value such as username.
func FormFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if err := r.ParseForm(); err != nil {
			return ""
		}
		return r.PostForm.Get(field)
	}
}

// CompositeKeyExtractor joins the non-empty keys of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, ex := range extractors {
			if k := ex(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, sep)
	}
}

type limiterSet struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	swept    time.Time
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Buckets that have refilled completely carry no state worth keeping.
	if time.Since(s.swept) > 5*time.Minute {
		for k, l := range s.limiters {
			if l.Tokens() >= float64(s.burst) {
				delete(s.limiters, k)
			}
		}
		s.swept = time.Now()
	}

	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[key] = l
	}
	return l
}

// RateLimit rejects requests over cfg with 429 and a Retry-After header.
func RateLimit(cfg RateLimitConfig, key KeyExtractor) Middleware {
	if cfg.Disabled() {
		return func(next http.Handler) http.Handler { return next }
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.Requests
	}
	set := &limiterSet{
		limit:    rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
		swept:    time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			l := set.get(k)
			if l.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			res := l.Reserve()
			retry := max(int(res.Delay().Seconds()), 1)
			res.Cancel()

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"key", k,
				"path", r.URL.Path,
				"retry_after", retry,
			)

			w.Header().Set("Retry-After", strconv.Itoa(retry))
			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "slow_down",
				"error_description": "too many requests",
			})
		})
	}
}
