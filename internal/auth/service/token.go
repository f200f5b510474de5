package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/idx"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// ErrPreAuthIssue guards against minting a final token for an intermediate
// authentication state.
var ErrPreAuthIssue = errors.New("refusing to issue tokens for pre-auth authorities")

// TokenIssuer mints the final token pair once a grant has succeeded.
type TokenIssuer interface {
	Issue(ctx context.Context, req IssueRequest) (*domain.TokenPair, error)
}

// IssueRequest describes a fully authenticated principal.
type IssueRequest struct {
	User        domain.User
	ClientID    string
	Scopes      []string
	Authorities jwtx.Authorities
	AMR         []string

	// SessionID is carried over on refresh; empty starts a new session.
	SessionID string
}

// TokenService signs access tokens and manages the opaque refresh tokens
// that go with them.
type TokenService struct {
	KeyManager *jwtx.KeyManager
	Store      store.Store
	Challenges *ChallengeService // consulted by Introspect; may be nil
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	Now func() time.Time
}

var _ TokenIssuer = (*TokenService)(nil)

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Issue signs an access token and stores a new refresh token for req.
func (s *TokenService) Issue(ctx context.Context, req IssueRequest) (*domain.TokenPair, error) {
	return s.issue(ctx, s.Store.RefreshTokens(), req, s.now())
}

func (s *TokenService) issue(
	ctx context.Context,
	refreshTokens store.RefreshTokens,
	req IssueRequest,
	now time.Time,
) (*domain.TokenPair, error) {
	if req.Authorities.IsPreAuth() {
		return nil, ErrPreAuthIssue
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = idx.New().String()
	}
	amr := dedupe(req.AMR)

	access, err := s.signAccess(req.User, req.ClientID, sessionID, req.Scopes, req.Authorities, amr, now)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    req.User.ID,
		ClientID:  req.ClientID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		SessionID: sessionID,
		Scopes:    slices.Clone(req.Scopes),
		AMR:       amr,
		ExpiresAt: now.Add(s.refreshTTL()),
	}
	if err := refreshTokens.CreateRefreshToken(ctx, rt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	slogx.FromContext(ctx).Info("tokens issued",
		slog.String("user_id", req.User.ID),
		slog.String("client_id", req.ClientID),
		slog.String("sid", sessionID),
		slog.Any("amr", amr),
	)

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refreshOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    s.accessTTL(),
		Scopes:       slices.Clone(req.Scopes),
	}, nil
}

// ExchangeRefreshToken implements the refresh_token grant. The presented
// token is claimed and replaced in the same transaction, so concurrent
// refreshes of one token have a single winner; scopes may only narrow, and
// the user's authorities are re-read.
func (s *TokenService) ExchangeRefreshToken(
	ctx context.Context,
	client domain.Client,
	refreshOpaque string,
	requestedScopes []string,
) (*domain.TokenPair, error) {
	refreshOpaque = strings.TrimSpace(refreshOpaque)
	if refreshOpaque == "" {
		return nil, ErrInvalidRequest
	}

	now := s.now()
	fp := cryptox.FingerprintToken(refreshOpaque)

	var pair *domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		// Revoked up front; any failure below rolls the claim back.
		rt, err := tx.RefreshTokens().ClaimRefreshToken(ctx, fp, now)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidGrant
		}
		if err != nil {
			return err
		}
		if rt.ClientID != client.ID {
			return ErrInvalidClient
		}

		scopes, err := NarrowScopes(rt.Scopes, requestedScopes)
		if err != nil {
			return err
		}

		u, err := tx.Users().GetUserByID(ctx, rt.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidGrant
		}
		if err != nil {
			return err
		}

		pair, err = s.issue(ctx, tx.RefreshTokens(), IssueRequest{
			User:        u,
			ClientID:    rt.ClientID,
			Scopes:      scopes,
			Authorities: jwtx.FullSet(u.Authorities...),
			AMR:         append(slices.Clone(rt.AMR), jwtx.AMRRefresh),
			SessionID:   rt.SessionID,
		}, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// RevokeRefreshToken revokes a refresh token by its opaque value.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, refreshOpaque string) error {
	return s.Store.RefreshTokens().RevokeRefreshToken(ctx, cryptox.FingerprintToken(refreshOpaque))
}

// Introspect describes any credential this service issued. Access tokens
// are verified as JWTs; opaque values are looked up first as pending
// mfa_tokens, then as refresh tokens. Anything else is inactive.
func (s *TokenService) Introspect(ctx context.Context, token string) (domain.TokenInfo, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.TokenInfo{}, nil
	}

	if claims, err := s.KeyManager.Verifier.Verify(token); err == nil {
		return accessTokenInfo(claims), nil
	}

	if s.Challenges != nil {
		ch, err := s.Challenges.Inspect(ctx, token)
		switch {
		case err == nil:
			return domain.TokenInfo{
				Active:      true,
				TokenType:   domain.TokenTypeMFA,
				Username:    ch.Username,
				ClientID:    ch.ClientID,
				Scopes:      ch.Scopes,
				Authorities: ch.Authorities.Names(),
				Issuer:      s.Issuer,
				IssuedAt:    ch.IssuedAt,
				ExpiresAt:   ch.ExpiresAt,
			}, nil
		case !errors.Is(err, ErrInvalidOrExpiredToken):
			return domain.TokenInfo{}, err
		}
	}

	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return domain.TokenInfo{}, nil
	}
	if err != nil {
		return domain.TokenInfo{}, fmt.Errorf("lookup refresh token: %w", err)
	}
	if !rt.Usable(s.now()) {
		return domain.TokenInfo{}, nil
	}

	return domain.TokenInfo{
		Active:    true,
		TokenType: domain.TokenTypeRefresh,
		Subject:   rt.UserID,
		ClientID:  rt.ClientID,
		Scopes:    rt.Scopes,
		AMR:       rt.AMR,
		SessionID: rt.SessionID,
		Issuer:    s.Issuer,
		IssuedAt:  rt.CreatedAt,
		ExpiresAt: rt.ExpiresAt,
	}, nil
}

func accessTokenInfo(c jwtx.Claims) domain.TokenInfo {
	info := domain.TokenInfo{
		Active:      true,
		TokenType:   domain.TokenTypeAccess,
		Subject:     c.Subject,
		Username:    c.Username,
		ClientID:    c.ClientID,
		Scopes:      c.Scopes,
		Authorities: c.AuthoritySet().Names(),
		AMR:         c.AMR,
		SessionID:   c.SID,
		Issuer:      c.Issuer,
		Audience:    c.Audience,
		JTI:         c.ID,
	}
	if c.IssuedAt != nil {
		info.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		info.ExpiresAt = c.ExpiresAt.Time
	}
	return info
}

func (s *TokenService) signAccess(
	u domain.User,
	clientID string,
	sessionID string,
	scopes []string,
	authorities jwtx.Authorities,
	amr []string,
	now time.Time,
) (string, error) {
	var audience []string
	if clientID != "" {
		audience = []string{clientID}
	}

	claims := jwtx.NewAccessClaims(jwtx.AccessParams{
		Subject:     u.ID,
		SessionID:   sessionID,
		ClientID:    clientID,
		Username:    u.Username,
		Scopes:      scopes,
		Authorities: authorities,
		AMR:         amr,
		Issuer:      s.Issuer,
		Audience:    audience,
		TTL:         s.accessTTL(),
	}, now)

	// Spread signing across the active keys.
	return s.KeyManager.GetSigner().Sign(claims)
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}
