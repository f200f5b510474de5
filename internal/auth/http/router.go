package http

import (
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/aussiebroadwan/twostep/api/auth" // Swagger docs
	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/httpx"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// RateLimits assigns a profile to each class of endpoint.
type RateLimits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Lenient  httpx.RateLimitConfig
	Public   httpx.RateLimitConfig
}

// DefaultRateLimits returns the built-in httpx profiles.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Lenient:  httpx.LenientLimit,
		Public:   httpx.PublicLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       RateLimits

	store        store.Store
	Dispatcher   *service.GrantDispatcher
	TokenService *service.TokenService
	Challenges   *service.ChallengeService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	limits RateLimits,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		limits:       limits,
		store:        st,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Twostep Token Service API
//	@version		0.1.0
//	@description	OAuth2 token service with a two-step password and TOTP flow.
//	@description
//	@description				Accounts with MFA enabled receive a short-lived mfa_token from the password grant and redeem it with grant_type=mfa.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	// Password and MFA attempts are limited per address and username.
	tokenHandler := httpx.Chain(&TokenHandler{Dispatcher: r.Dispatcher},
		httpx.RateLimit(r.limits.Strict, httpx.CompositeKeyExtractor("|",
			httpx.IPKeyExtractor,
			httpx.FormFieldKeyExtractor("username"),
		)),
	)
	r.Mux.Handle("POST /v1/oauth2/token", tokenHandler)
	r.Mux.Handle("POST /token", tokenHandler)

	revokeHandler := &RevokeHandler{
		TokenService: r.TokenService,
		Challenges:   r.Challenges,
	}
	r.Mux.Handle("POST /v1/oauth2/revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimit(r.limits.Moderate, httpx.IPKeyExtractor),
		),
	)

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimit(r.limits.Public, httpx.IPKeyExtractor),
		),
	)

	introspectHandler := &IntrospectHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/oauth2/introspect",
		httpx.Chain(introspectHandler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimit(r.limits.Moderate, httpx.SubjectKeyExtractor),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UserInfoHandler{Users: r.store.Users()}

	r.Mux.Handle("GET /v1/userinfo",
		httpx.Chain(h,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimit(r.limits.Lenient, httpx.SubjectKeyExtractor),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimit(r.limits.Lenient, httpx.IPKeyExtractor),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.Challenges),
			httpx.RateLimit(r.limits.Lenient, httpx.IPKeyExtractor),
		),
	)
}
