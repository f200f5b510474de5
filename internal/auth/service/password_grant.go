package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// MFAMethodTOTP is the only second factor offered.
const MFAMethodTOTP = "totp"

type PasswordRequest struct {
	Username string
	Password string
	Client   domain.Client
	Scopes   []string
}

// PasswordGrant is the first step of the flow. Accounts without a second
// factor get tokens straight away; the rest get an mfa_token.
type PasswordGrant struct {
	Authenticator *CredentialAuthenticator
	Challenges    *ChallengeService
	Tokens        TokenIssuer

	// ChallengeTTL is passed to Challenges.Create.
	ChallengeTTL time.Duration
}

// Handle returns a token pair, or a *MFARequiredError carrying the
// mfa_token when the account has MFA enabled.
func (g *PasswordGrant) Handle(ctx context.Context, req PasswordRequest) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	u, err := g.Authenticator.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	scopes, err := ResolveScopes(req.Client, req.Scopes)
	if err != nil {
		l.Info("password grant scope rejected",
			slog.String("username", u.Username),
			slog.String("client_id", req.Client.ID),
			slog.Any("scopes", req.Scopes),
		)
		return nil, err
	}

	if !u.HasMFA() {
		return g.Tokens.Issue(ctx, IssueRequest{
			User:        u,
			ClientID:    req.Client.ID,
			Scopes:      scopes,
			Authorities: jwtx.FullSet(u.Authorities...),
			AMR:         []string{jwtx.AMRPassword},
		})
	}

	token, ch, err := g.Challenges.Create(ctx, u.Username, req.Client.ID, scopes, g.ChallengeTTL)
	if err != nil {
		return nil, fmt.Errorf("create mfa challenge: %w", err)
	}

	l.Info("mfa challenge issued",
		slog.String("username", u.Username),
		slog.String("client_id", req.Client.ID),
		slog.Time("expires_at", ch.ExpiresAt),
	)

	return nil, &MFARequiredError{
		MFAToken:  token,
		Methods:   []string{MFAMethodTOTP},
		ExpiresIn: int(ch.ExpiresAt.Sub(ch.IssuedAt).Seconds()),
	}
}
