package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/pkg/authsdk"
	"github.com/aussiebroadwan/twostep/pkg/httpx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// IntrospectHandler serves POST /v1/oauth2/introspect (RFC 7662).
type IntrospectHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Token Introspection
//	@Description	Reports whether a token is active. Pending mfa_tokens are reported with token_type mfa_token and authorities ["PRE_AUTH"].
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Security		BearerAuth
//	@Param			token	formData	string							true	"Token to introspect"
//	@Success		200		{object}	authsdk.IntrospectionResponse	"Token metadata"
//	@Failure		400		{object}	authsdk.ErrorResponse			"invalid_request"
//	@Failure		401		{object}	authsdk.ErrorResponse			"invalid_token"
//	@Router			/v1/oauth2/introspect [post].
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	token := strings.TrimSpace(r.PostForm.Get("token"))
	if token == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	info, err := h.TokenService.Introspect(r.Context(), token)
	if err != nil {
		slogx.FromContext(r.Context()).Error("introspection failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, introspectionResponse(info))
}

func introspectionResponse(info domain.TokenInfo) authsdk.IntrospectionResponse {
	if !info.Active {
		return authsdk.IntrospectionResponse{Active: false}
	}

	resp := authsdk.IntrospectionResponse{
		Active:      true,
		Scope:       strings.Join(info.Scopes, " "),
		ClientID:    info.ClientID,
		Username:    info.Username,
		TokenType:   info.TokenType,
		Authorities: info.Authorities,
		Sub:         info.Subject,
		Aud:         info.Audience,
		Iss:         info.Issuer,
		Jti:         info.JTI,
		SessionID:   info.SessionID,
		AMR:         info.AMR,
	}
	if !info.IssuedAt.IsZero() {
		resp.Iat = info.IssuedAt.Unix()
	}
	if !info.ExpiresAt.IsZero() {
		resp.Exp = info.ExpiresAt.Unix()
	}
	return resp
}
