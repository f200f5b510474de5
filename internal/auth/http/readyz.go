package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/authsdk"
	"github.com/aussiebroadwan/twostep/pkg/httpx"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness check covering the database, the signing keys and the MFA challenge backend.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	keys *jwtx.KeySet,
	challenges *service.ChallengeService,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Database:   "ok",
			Signer:     "ok",
			Challenges: "ok",
		}
		status := "ok"
		code := http.StatusOK
		degrade := func(field *string, msg string) {
			*field = "error: " + msg
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		if err := st.Ping(r.Context()); err != nil {
			degrade(&checks.Database, err.Error())
		}
		if !keys.IsReady() {
			degrade(&checks.Signer, "no keys loaded")
		}
		if challenges != nil {
			if err := challenges.Ping(r.Context()); err != nil {
				degrade(&checks.Challenges, err.Error())
			}
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
