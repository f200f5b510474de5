package http

import (
	"errors"
	"net/http"
	"slices"

	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/authsdk"
	"github.com/aussiebroadwan/twostep/pkg/httpx"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// UserInfoHandler serves GET /v1/userinfo for fully authenticated callers.
type UserInfoHandler struct {
	Users store.Users
}

// ServeHTTP godoc
//
//	@Summary		User Info
//	@Description	Returns the authenticated user. Tokens carrying only PRE_AUTH are rejected.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.UserInfoResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Router			/v1/userinfo [get].
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := httpx.ClaimsFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	u, err := h.Users.GetUserByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}
	if err != nil {
		slogx.FromContext(ctx).Error("userinfo lookup failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserInfoResponse{
		UserID:      u.ID,
		Username:    u.Username,
		Authorities: claims.AuthoritySet().Names(),
		AMR:         claims.AMR,
		MFA:         slices.Contains(claims.AMR, jwtx.AMRMFA),
	})
}
