package service

import (
	"context"
	"strings"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
)

// Grant types accepted at the token endpoint.
const (
	GrantTypePassword     = "password"
	GrantTypeMFA          = "mfa"
	GrantTypeRefreshToken = "refresh_token"
)

// TokenRequest is the decoded token endpoint form.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Scopes       []string

	Username string
	Password string

	MFAToken string
	MFACode  string

	RefreshToken string
}

// GrantDispatcher routes a token request to its grant handler after
// authenticating the client.
type GrantDispatcher struct {
	Clients  *ClientAuthenticator
	Password *PasswordGrant
	MFA      *MFAGrant
	Tokens   *TokenService
}

func (d *GrantDispatcher) Dispatch(ctx context.Context, req TokenRequest) (*domain.TokenPair, error) {
	grantType := strings.TrimSpace(req.GrantType)
	switch grantType {
	case "":
		return nil, ErrInvalidRequest
	case GrantTypePassword, GrantTypeMFA, GrantTypeRefreshToken:
	default:
		return nil, ErrUnsupportedGrantType
	}

	client, err := d.Clients.Authenticate(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	switch grantType {
	case GrantTypePassword:
		return d.Password.Handle(ctx, PasswordRequest{
			Username: req.Username,
			Password: req.Password,
			Client:   client,
			Scopes:   req.Scopes,
		})
	case GrantTypeMFA:
		return d.MFA.Handle(ctx, MFARequest{
			MFAToken: req.MFAToken,
			Code:     req.MFACode,
			ClientID: client.ID,
			Scopes:   req.Scopes,
		})
	default:
		return d.Tokens.ExchangeRefreshToken(ctx, client, req.RefreshToken, req.Scopes)
	}
}
