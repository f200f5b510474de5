package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/pkg/authsdk"
	"github.com/aussiebroadwan/twostep/pkg/httpx"
)

// TokenHandler serves POST /v1/oauth2/token.
// Accepts application/x-www-form-urlencoded per RFC 6749.
type TokenHandler struct {
	Dispatcher *service.GrantDispatcher
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Issues tokens for the password, mfa and refresh_token grants. A correct password for an account with MFA enabled yields 403 mfa_required with an mfa_token to redeem via grant_type=mfa.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string							true	"Grant type"	Enums(password, mfa, refresh_token)
//	@Param			username		formData	string							false	"Username (password grant)"
//	@Param			password		formData	string							false	"Password (password grant)"
//	@Param			mfa_token		formData	string							false	"Token from the mfa_required response (mfa grant)"
//	@Param			mfa_code		formData	string							false	"Six digit TOTP code (mfa grant)"
//	@Param			refresh_token	formData	string							false	"Refresh token (refresh_token grant)"
//	@Param			client_id		formData	string							false	"Client identifier"
//	@Param			client_secret	formData	string							false	"Client secret (confidential clients)"
//	@Param			scope			formData	string							false	"Space-delimited list of scopes"
//	@Success		200				{object}	authsdk.TokenResponse			"access_token, refresh_token, token_type, expires_in, scope"
//	@Failure		400				{object}	authsdk.ErrorResponse			"invalid_request, invalid_grant, invalid_scope, unsupported_grant_type"
//	@Failure		401				{object}	authsdk.ErrorResponse			"invalid_client"
//	@Failure		403				{object}	authsdk.MFARequiredError		"mfa_required"
//	@Failure		429				{object}	authsdk.ErrorResponse			"slow_down"
//	@Failure		500				{object}	authsdk.ErrorResponse			"server_error"
//	@Header			200				{string}	Cache-Control					"no-store"
//	@Header			200				{string}	Pragma							"no-cache"
//	@Router			/v1/oauth2/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	form := r.PostForm
	pair, err := h.Dispatcher.Dispatch(r.Context(), service.TokenRequest{
		GrantType:    form.Get("grant_type"),
		ClientID:     form.Get("client_id"),
		ClientSecret: form.Get("client_secret"),
		Scopes:       httpx.ParseSpaceDelimitedFields(form.Get("scope")),
		Username:     form.Get("username"),
		Password:     form.Get("password"),
		MFAToken:     form.Get("mfa_token"),
		MFACode:      form.Get("mfa_code"),
		RefreshToken: form.Get("refresh_token"),
	})
	if err != nil {
		writeGrantError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
		Scope:        pair.Scope(),
	})
}
