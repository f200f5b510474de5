package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
)

func TestClampTTL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ttl, fallback, want time.Duration
	}{
		{0, 0, service.DefaultChallengeTTL},
		{0, 2 * time.Minute, 2 * time.Minute},
		{10 * time.Second, 0, service.MinChallengeTTL},
		{time.Hour, 0, service.MaxChallengeTTL},
		{90 * time.Second, time.Hour, 90 * time.Second},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, service.ClampTTL(tc.ttl, tc.fallback), "ttl=%s fallback=%s", tc.ttl, tc.fallback)
	}
}

func TestChallengeService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("only the fingerprint is stored", func(t *testing.T) {
		f := newFixture(t)

		token, ch, err := f.challenges.Create(ctx, "john", "web", []string{"profile"}, 0)
		require.NoError(t, err)
		require.NotEmpty(t, token)
		require.Equal(t, cryptox.FingerprintToken(token), ch.TokenHash)
		require.NotEqual(t, token, ch.TokenHash)
		require.True(t, ch.Authorities.IsPreAuth())
		require.Equal(t, service.DefaultChallengeTTL, ch.ExpiresAt.Sub(ch.IssuedAt))
	})

	t.Run("consume is single use", func(t *testing.T) {
		f := newFixture(t)

		token, _, err := f.challenges.Create(ctx, "john", "web", nil, time.Minute)
		require.NoError(t, err)

		got, err := f.challenges.Consume(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "john", got.Username)
		require.True(t, got.Authorities.IsPreAuth())

		_, err = f.challenges.Consume(ctx, token)
		require.ErrorIs(t, err, service.ErrInvalidOrExpiredToken)
	})

	t.Run("expired at access time", func(t *testing.T) {
		f := newFixture(t)

		token, _, err := f.challenges.Create(ctx, "john", "web", nil, time.Minute)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)

		_, err = f.challenges.Inspect(ctx, token)
		require.ErrorIs(t, err, service.ErrInvalidOrExpiredToken)
		_, err = f.challenges.Consume(ctx, token)
		require.ErrorIs(t, err, service.ErrInvalidOrExpiredToken)
	})

	t.Run("inspect does not consume", func(t *testing.T) {
		f := newFixture(t)

		token, _, err := f.challenges.Create(ctx, "john", "web", nil, 0)
		require.NoError(t, err)

		_, err = f.challenges.Inspect(ctx, token)
		require.NoError(t, err)
		_, err = f.challenges.Consume(ctx, token)
		require.NoError(t, err)
	})

	t.Run("revoke", func(t *testing.T) {
		f := newFixture(t)

		token, _, err := f.challenges.Create(ctx, "john", "web", nil, 0)
		require.NoError(t, err)
		require.NoError(t, f.challenges.Revoke(ctx, token))
		require.NoError(t, f.challenges.Revoke(ctx, token))

		_, err = f.challenges.Consume(ctx, token)
		require.ErrorIs(t, err, service.ErrInvalidOrExpiredToken)
	})

	t.Run("garbage and empty tokens", func(t *testing.T) {
		f := newFixture(t)

		for _, token := range []string{"", "   ", "not-a-token"} {
			_, err := f.challenges.Consume(ctx, token)
			require.ErrorIs(t, err, service.ErrInvalidOrExpiredToken)
		}
	})

	t.Run("sweep", func(t *testing.T) {
		f := newFixture(t)

		_, _, err := f.challenges.Create(ctx, "john", "web", nil, time.Minute)
		require.NoError(t, err)
		_, _, err = f.challenges.Create(ctx, "john", "web", nil, 5*time.Minute)
		require.NoError(t, err)
		f.clock.Advance(2 * time.Minute)

		n, err := f.challenges.Sweep(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		require.Equal(t, 1, f.backend.Len())
	})
}
