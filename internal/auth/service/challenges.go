package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

// Bounds on how long an mfa_token stays redeemable.
const (
	MinChallengeTTL     = 60 * time.Second
	MaxChallengeTTL     = 300 * time.Second
	DefaultChallengeTTL = MaxChallengeTTL
)

// ChallengeService mints and redeems the opaque mfa_token handed out between
// the password and second-factor steps. Only the token's fingerprint is
// persisted.
type ChallengeService struct {
	Store store.Challenges

	// TTL applies when Create is given none. Zero means DefaultChallengeTTL.
	TTL time.Duration

	Now func() time.Time
}

func (s *ChallengeService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ClampTTL bounds ttl to [MinChallengeTTL, MaxChallengeTTL]; zero or less
// yields fallback, itself clamped.
func ClampTTL(ttl, fallback time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = fallback
	}
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return min(max(ttl, MinChallengeTTL), MaxChallengeTTL)
}

// Create records a pending challenge and returns the raw token to hand to
// the client. The record always carries pre-auth authorities.
func (s *ChallengeService) Create(
	ctx context.Context,
	username, clientID string,
	scopes []string,
	ttl time.Duration,
) (string, *domain.Challenge, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", nil, fmt.Errorf("generate mfa token: %w", err)
	}

	now := s.now().UTC()
	ch := domain.Challenge{
		TokenHash:   cryptox.FingerprintToken(token),
		Username:    username,
		ClientID:    clientID,
		Scopes:      slices.Clone(scopes),
		Authorities: jwtx.PreAuthOnly(),
		IssuedAt:    now,
		ExpiresAt:   now.Add(ClampTTL(ttl, s.TTL)),
	}
	if err := s.Store.CreateChallenge(ctx, ch); err != nil {
		return "", nil, fmt.Errorf("store challenge: %w", err)
	}
	return token, &ch, nil
}

// Consume redeems token. It succeeds at most once per token; missing,
// expired and already used tokens all yield ErrInvalidOrExpiredToken.
func (s *ChallengeService) Consume(ctx context.Context, token string) (domain.Challenge, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Challenge{}, ErrInvalidOrExpiredToken
	}

	ch, err := s.Store.ConsumeChallenge(ctx, cryptox.FingerprintToken(token), s.now())
	if errors.Is(err, store.ErrNotFound) {
		return domain.Challenge{}, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("consume challenge: %w", err)
	}
	ch.Authorities = jwtx.PreAuthOnly()
	return ch, nil
}

// Inspect reads a pending challenge without redeeming it.
func (s *ChallengeService) Inspect(ctx context.Context, token string) (domain.Challenge, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Challenge{}, ErrInvalidOrExpiredToken
	}

	ch, err := s.Store.GetChallenge(ctx, cryptox.FingerprintToken(token), s.now())
	if errors.Is(err, store.ErrNotFound) {
		return domain.Challenge{}, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("inspect challenge: %w", err)
	}
	ch.Authorities = jwtx.PreAuthOnly()
	return ch, nil
}

// Revoke discards token. Unknown tokens are not an error.
func (s *ChallengeService) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return s.Store.DeleteChallenge(ctx, cryptox.FingerprintToken(token))
}

// Sweep deletes expired challenges and reports how many went.
func (s *ChallengeService) Sweep(ctx context.Context) (int64, error) {
	return s.Store.DeleteExpiredChallenges(ctx, s.now())
}

// Ping checks the backend when it supports it.
func (s *ChallengeService) Ping(ctx context.Context) error {
	if p, ok := s.Store.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
