package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/pkg/authsdk"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// writeGrantError maps service errors to OAuth2 responses. Credential,
// token and code failures share one invalid_grant body so a caller cannot
// tell them apart.
func writeGrantError(w http.ResponseWriter, r *http.Request, err error) {
	var mfa *service.MFARequiredError
	switch {
	case errors.As(err, &mfa):
		mfa.WriteError(w)
	case errors.Is(err, service.ErrInvalidRequest):
		authsdk.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidGrant):
		authsdk.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrInvalidClient):
		authsdk.ErrInvalidClient.WriteError(w)
	case errors.Is(err, service.ErrInvalidScope):
		authsdk.ErrInvalidScope.WriteError(w)
	case errors.Is(err, service.ErrUnsupportedGrantType):
		authsdk.ErrUnsupportedGrantType.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("token request failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
