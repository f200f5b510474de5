package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

func annaTokens(t *testing.T, f *fixture) *domain.TokenPair {
	t.Helper()
	pair, err := f.dispatcher.Dispatch(context.Background(), service.TokenRequest{
		GrantType: service.GrantTypePassword,
		Username:  "anna",
		Password:  "qwerty",
		ClientID:  "web",
	})
	require.NoError(t, err)
	return pair
}

func TestIssueRefusesPreAuth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	u, err := f.store.Users().GetUserByUsername(context.Background(), "anna")
	require.NoError(t, err)

	_, err = f.tokens.Issue(context.Background(), service.IssueRequest{
		User:        u,
		Authorities: jwtx.PreAuthOnly(),
	})
	require.ErrorIs(t, err, service.ErrPreAuthIssue)
}

func TestRefreshGrant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	refresh := func(f *fixture, token, clientID string, scopes ...string) (*domain.TokenPair, error) {
		return f.dispatcher.Dispatch(ctx, service.TokenRequest{
			GrantType:    service.GrantTypeRefreshToken,
			RefreshToken: token,
			ClientID:     clientID,
			Scopes:       scopes,
		})
	}

	t.Run("rotates and keeps the session", func(t *testing.T) {
		f := newFixture(t)
		first := annaTokens(t, f)

		second, err := refresh(f, first.RefreshToken, "web", "profile")
		require.NoError(t, err)
		require.NotEqual(t, first.RefreshToken, second.RefreshToken)
		require.Equal(t, "profile", second.Scope())

		before := f.verify(t, first.AccessToken)
		after := f.verify(t, second.AccessToken)
		require.Equal(t, before.SID, after.SID)
		require.Equal(t, []string{jwtx.AMRPassword, jwtx.AMRRefresh}, after.AMR)

		_, err = refresh(f, first.RefreshToken, "web")
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("widening is rejected", func(t *testing.T) {
		f := newFixture(t)
		first := annaTokens(t, f)

		narrowed, err := refresh(f, first.RefreshToken, "web", "profile")
		require.NoError(t, err)

		_, err = refresh(f, narrowed.RefreshToken, "web", "profile", "email")
		require.ErrorIs(t, err, service.ErrInvalidScope)
	})

	t.Run("another client", func(t *testing.T) {
		f := newFixture(t)
		first := annaTokens(t, f)

		_, err := refresh(f, first.RefreshToken, "cli")
		require.ErrorIs(t, err, service.ErrInvalidClient)
	})

	t.Run("unknown, missing and revoked", func(t *testing.T) {
		f := newFixture(t)
		first := annaTokens(t, f)

		_, err := refresh(f, "", "web")
		require.ErrorIs(t, err, service.ErrInvalidRequest)

		_, err = refresh(f, "garbage", "web")
		require.ErrorIs(t, err, service.ErrInvalidGrant)

		require.NoError(t, f.tokens.RevokeRefreshToken(ctx, first.RefreshToken))
		_, err = refresh(f, first.RefreshToken, "web")
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		first := annaTokens(t, f)
		f.clock.Advance(jwtx.DefaultRefreshTokenTTL)

		_, err := refresh(f, first.RefreshToken, "web")
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("failed exchange leaves the token usable", func(t *testing.T) {
		f := newFixture(t)
		first := annaTokens(t, f)

		_, err := refresh(f, first.RefreshToken, "web", "admin")
		require.ErrorIs(t, err, service.ErrInvalidScope)

		_, err = refresh(f, first.RefreshToken, "web")
		require.NoError(t, err)
	})

	t.Run("concurrent refresh succeeds once", func(t *testing.T) {
		f := newFixture(t)
		first := annaTokens(t, f)

		var (
			wg     sync.WaitGroup
			wins   atomic.Int32
			others atomic.Int32
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := refresh(f, first.RefreshToken, "web")
				switch {
				case err == nil:
					wins.Add(1)
				case !errors.Is(err, service.ErrInvalidGrant):
					others.Add(1)
				}
			}()
		}
		wg.Wait()

		require.EqualValues(t, 1, wins.Load())
		require.Zero(t, others.Load(), "losers must see invalid_grant, not a storage error")
	})
}

func TestIntrospect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	t.Run("access token", func(t *testing.T) {
		pair := annaTokens(t, f)

		info, err := f.tokens.Introspect(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.True(t, info.Active)
		require.Equal(t, domain.TokenTypeAccess, info.TokenType)
		require.Equal(t, "anna", info.Username)
		require.Equal(t, []string{"ROLE_USER", "ROLE_ADMIN"}, info.Authorities)
	})

	t.Run("refresh token", func(t *testing.T) {
		pair := annaTokens(t, f)

		info, err := f.tokens.Introspect(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.True(t, info.Active)
		require.Equal(t, domain.TokenTypeRefresh, info.TokenType)
	})

	t.Run("mfa token reports pre-auth only", func(t *testing.T) {
		token := f.mfaToken(t, "web")

		info, err := f.tokens.Introspect(ctx, token)
		require.NoError(t, err)
		require.True(t, info.Active)
		require.Equal(t, domain.TokenTypeMFA, info.TokenType)
		require.Equal(t, "john", info.Username)
		require.Equal(t, []string{jwtx.PreAuthAuthority}, info.Authorities)

		// Introspection does not redeem it.
		_, err = f.challenges.Consume(ctx, token)
		require.NoError(t, err)

		info, err = f.tokens.Introspect(ctx, token)
		require.NoError(t, err)
		require.False(t, info.Active)
	})

	t.Run("garbage", func(t *testing.T) {
		for _, token := range []string{"", "nonsense", "a.b.c"} {
			info, err := f.tokens.Introspect(ctx, token)
			require.NoError(t, err)
			require.False(t, info.Active)
		}
	})
}

func TestHousekeeping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := service.NewHousekeepingService(nil, nil, slogx.Discard(), "every tuesday")
	require.Error(t, err)

	f := newFixture(t)
	hk, err := service.NewHousekeepingService(f.store, f.challenges, slogx.Discard(), "")
	require.NoError(t, err)
	require.Equal(t, service.DefaultHousekeepingSchedule, hk.Schedule)
	hk.Now = f.clock.Now

	pair := annaTokens(t, f)
	_, _, err = f.challenges.Create(ctx, "john", "web", nil, time.Minute)
	require.NoError(t, err)

	f.clock.Advance(jwtx.DefaultRefreshTokenTTL)
	hk.Cleanup(ctx)

	require.Zero(t, f.backend.Len())
	_, err = f.store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(pair.RefreshToken))
	require.ErrorIs(t, err, store.ErrNotFound)
	info, err := f.tokens.Introspect(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.False(t, info.Active)

	require.NoError(t, hk.Start())
	hk.Stop()
}
