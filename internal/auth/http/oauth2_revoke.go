package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/authsdk"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// RevokeHandler serves POST /v1/oauth2/revoke (RFC 7009).
type RevokeHandler struct {
	TokenService *service.TokenService
	Challenges   *service.ChallengeService
}

// ServeHTTP godoc
//
//	@Summary		Revoke Token
//	@Description	Revokes a refresh token or a pending mfa_token. Unknown tokens are not an error.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Param			token			formData	string	true	"Token to revoke"
//	@Param			token_type_hint	formData	string	false	"refresh_token or mfa_token"
//	@Success		200
//	@Failure		400	{object}	authsdk.ErrorResponse	"invalid_request"
//	@Router			/v1/oauth2/revoke [post].
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	token := strings.TrimSpace(r.PostForm.Get("token"))
	if token == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	var err error
	if r.PostForm.Get("token_type_hint") == domain.TokenTypeMFA {
		err = h.Challenges.Revoke(ctx, token)
	} else {
		err = h.TokenService.RevokeRefreshToken(ctx, token)
		if errors.Is(err, store.ErrNotFound) {
			err = h.Challenges.Revoke(ctx, token)
		}
	}
	if err != nil {
		log.Error("revocation failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	w.WriteHeader(http.StatusOK)
}
