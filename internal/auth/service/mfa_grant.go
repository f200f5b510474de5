package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

type MFARequest struct {
	MFAToken string
	Code     string
	ClientID string
	Scopes   []string
}

// MFAGrant redeems an mfa_token together with a TOTP code. The token is
// consumed before the code is checked, so a wrong code burns it.
type MFAGrant struct {
	Users      store.Users
	Challenges *ChallengeService
	Tokens     TokenIssuer

	// Codes defaults to TOTPVerifier.
	Codes CodeVerifier

	Now func() time.Time
}

func (g *MFAGrant) Handle(ctx context.Context, req MFARequest) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	if strings.TrimSpace(req.MFAToken) == "" || strings.TrimSpace(req.Code) == "" {
		return nil, ErrInvalidRequest
	}

	ch, err := g.Challenges.Consume(ctx, req.MFAToken)
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			l.Info("mfa token rejected", slog.String("client_id", req.ClientID))
		}
		return nil, err
	}

	// The account may have changed since the password step.
	u, err := g.Users.GetUserByUsername(ctx, ch.Username)
	if errors.Is(err, store.ErrNotFound) {
		l.Warn("mfa user vanished", slog.String("username", ch.Username))
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.HasMFA() {
		l.Warn("mfa disabled mid-flow", slog.String("username", ch.Username))
		return nil, ErrInvalidGrant
	}

	ok, err := g.codes().VerifyCode(u.TOTPSecret(), req.Code, g.now())
	switch {
	case errors.Is(err, ErrInvalidSecret):
		l.Error("stored totp secret unusable", slog.String("username", u.Username), slog.Any("error", err))
		return nil, err
	case err != nil || !ok:
		l.Info("mfa code rejected",
			slog.String("username", u.Username),
			slog.String("client_id", req.ClientID),
		)
		return nil, ErrInvalidCode
	}

	if req.ClientID != ch.ClientID {
		l.Warn("mfa token presented by another client",
			slog.String("username", u.Username),
			slog.String("bound_client_id", ch.ClientID),
			slog.String("client_id", req.ClientID),
		)
		return nil, ErrInvalidClient
	}

	scopes, err := NarrowScopes(ch.Scopes, req.Scopes)
	if err != nil {
		return nil, err
	}

	return g.Tokens.Issue(ctx, IssueRequest{
		User:        u,
		ClientID:    ch.ClientID,
		Scopes:      scopes,
		Authorities: jwtx.FullSet(u.Authorities...),
		AMR:         []string{jwtx.AMRPassword, jwtx.AMROTP, jwtx.AMRMFA},
	})
}

func (g *MFAGrant) codes() CodeVerifier {
	if g.Codes != nil {
		return g.Codes
	}
	return TOTPVerifier{}
}

func (g *MFAGrant) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}
