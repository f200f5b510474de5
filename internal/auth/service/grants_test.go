package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

func TestPasswordGrant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("account without mfa gets tokens directly", func(t *testing.T) {
		f := newFixture(t)

		pair, err := f.dispatcher.Dispatch(ctx, service.TokenRequest{
			GrantType: service.GrantTypePassword,
			Username:  "anna",
			Password:  "qwerty",
			ClientID:  "web",
		})
		require.NoError(t, err)
		require.NotEmpty(t, pair.RefreshToken)
		require.Equal(t, "Bearer", pair.TokenType)
		require.Equal(t, "profile email", pair.Scope())

		claims := f.verify(t, pair.AccessToken)
		require.Equal(t, "anna", claims.Username)
		require.Equal(t, "web", claims.ClientID)
		require.Equal(t, []string{"ROLE_USER", "ROLE_ADMIN"}, claims.Authorities)
		require.Equal(t, []string{jwtx.AMRPassword}, claims.AMR)
		require.Zero(t, f.backend.Len())
	})

	t.Run("account with mfa never gets tokens from the first step", func(t *testing.T) {
		f := newFixture(t)

		pair, err := f.password.Handle(ctx, service.PasswordRequest{
			Username: "john",
			Password: "pass",
			Client:   domain.Client{ID: "web", Scopes: []string{"profile"}},
		})
		require.Nil(t, pair)

		var mfaErr *service.MFARequiredError
		require.ErrorAs(t, err, &mfaErr)
		require.NotEmpty(t, mfaErr.MFAToken)
		require.Equal(t, []string{service.MFAMethodTOTP}, mfaErr.Methods)
		require.Equal(t, int(service.DefaultChallengeTTL.Seconds()), mfaErr.ExpiresIn)
		require.Equal(t, 1, f.backend.Len())
	})

	t.Run("challenge ttl is configurable", func(t *testing.T) {
		f := newFixture(t)
		f.password.ChallengeTTL = 90 * time.Second

		_, err := f.password.Handle(ctx, service.PasswordRequest{Username: "john", Password: "pass"})
		var mfaErr *service.MFARequiredError
		require.ErrorAs(t, err, &mfaErr)
		require.Equal(t, 90, mfaErr.ExpiresIn)
	})

	t.Run("failed authentication creates no challenge", func(t *testing.T) {
		f := newFixture(t)

		for _, tc := range []struct{ username, password string }{
			{"john", "wrong"},
			{"nobody", "pass"},
		} {
			_, err := f.password.Handle(ctx, service.PasswordRequest{Username: tc.username, Password: tc.password})
			require.ErrorIs(t, err, service.ErrInvalidCredentials)
		}
		require.Zero(t, f.backend.Len())
	})

	t.Run("scope outside the client is rejected", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.dispatcher.Dispatch(ctx, service.TokenRequest{
			GrantType: service.GrantTypePassword,
			Username:  "john",
			Password:  "pass",
			ClientID:  "cli",
			Scopes:    []string{"email"},
		})
		require.ErrorIs(t, err, service.ErrInvalidScope)
		require.Zero(t, f.backend.Len())
	})
}

func TestMFAGrant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	redeem := func(f *fixture, token, code, clientID string, scopes ...string) (*domain.TokenPair, error) {
		return f.dispatcher.Dispatch(ctx, service.TokenRequest{
			GrantType: service.GrantTypeMFA,
			MFAToken:  token,
			MFACode:   code,
			ClientID:  clientID,
			Scopes:    scopes,
		})
	}

	t.Run("round trip", func(t *testing.T) {
		f := newFixture(t)
		token := f.mfaToken(t, "web")

		pair, err := redeem(f, token, f.code(t), "web")
		require.NoError(t, err)
		require.Equal(t, "profile email", pair.Scope())

		claims := f.verify(t, pair.AccessToken)
		require.Equal(t, "john", claims.Username)
		require.Equal(t, []string{"ROLE_USER"}, claims.Authorities)
		require.False(t, claims.AuthoritySet().IsPreAuth())
		require.Equal(t, []string{jwtx.AMRPassword, jwtx.AMROTP, jwtx.AMRMFA}, claims.AMR)

		_, err = redeem(f, token, f.code(t), "web")
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("wrong code burns the token", func(t *testing.T) {
		f := newFixture(t)
		token := f.mfaToken(t, "web")

		wrong := "000000"
		if f.code(t) == wrong {
			wrong = "111111"
		}
		_, err := redeem(f, token, wrong, "web")
		require.ErrorIs(t, err, service.ErrInvalidCode)

		_, err = redeem(f, token, f.code(t), "web")
		require.ErrorIs(t, err, service.ErrInvalidOrExpiredToken)
	})

	t.Run("non-numeric code is an invalid grant", func(t *testing.T) {
		f := newFixture(t)
		token := f.mfaToken(t, "web")

		_, err := redeem(f, token, "abcdef", "web")
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("missing parameters", func(t *testing.T) {
		f := newFixture(t)
		token := f.mfaToken(t, "web")

		_, err := redeem(f, "", "123456", "web")
		require.ErrorIs(t, err, service.ErrInvalidRequest)
		_, err = redeem(f, token, " ", "web")
		require.ErrorIs(t, err, service.ErrInvalidRequest)

		// The token survives a malformed request.
		_, err = redeem(f, token, f.code(t), "web")
		require.NoError(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newFixture(t)
		token := f.mfaToken(t, "web")
		f.clock.Advance(service.DefaultChallengeTTL)

		_, err := redeem(f, token, f.code(t), "web")
		require.ErrorIs(t, err, service.ErrInvalidOrExpiredToken)
	})

	t.Run("token bound to another client", func(t *testing.T) {
		f := newFixture(t)
		token := f.mfaToken(t, "web")

		_, err := redeem(f, token, f.code(t), "cli")
		require.ErrorIs(t, err, service.ErrInvalidClient)

		// Binding failures still burn the token.
		_, err = redeem(f, token, f.code(t), "web")
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("scopes may narrow but not widen", func(t *testing.T) {
		f := newFixture(t)

		pair, err := redeem(f, f.mfaToken(t, "web"), f.code(t), "web", "email")
		require.NoError(t, err)
		require.Equal(t, "email", pair.Scope())

		_, err = redeem(f, f.mfaToken(t, "web", "profile"), f.code(t), "web", "profile", "email")
		require.ErrorIs(t, err, service.ErrInvalidScope)
	})

	t.Run("mfa disabled mid-flow", func(t *testing.T) {
		f := newFixture(t)
		token := f.mfaToken(t, "web")

		u, err := f.store.Users().GetUserByUsername(ctx, "john")
		require.NoError(t, err)
		u.MFAEnabled, u.MFASecret = nil, nil
		require.NoError(t, f.store.Users().UpsertUser(ctx, u))

		_, err = redeem(f, token, codeAt(t, johnSecret, f.clock.Now()), "web")
		require.ErrorIs(t, err, service.ErrInvalidGrant)
	})

	t.Run("concurrent redemption succeeds once", func(t *testing.T) {
		f := newFixture(t)
		token := f.mfaToken(t, "web")
		code := f.code(t)

		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := redeem(f, token, code, "web"); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		require.EqualValues(t, 1, wins.Load())
	})
}

// halfSetUsers returns eve with MFA enabled but no usable secret, as an
// external user store might.
type halfSetUsers struct {
	store.Users
	secret *string
}

func (u halfSetUsers) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	if username != "eve" {
		return u.Users.GetUserByUsername(ctx, username)
	}
	enabled := time.Now().UTC()
	return domain.User{
		ID:           "u1",
		Username:     "eve",
		PasswordHash: annaHash,
		Authorities:  []string{"ROLE_ADMIN"},
		MFAEnabled:   &enabled,
		MFASecret:    u.secret,
	}, nil
}

func TestMFAEnabledWithoutSecret(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	empty := ""

	for name, secret := range map[string]*string{"empty secret": &empty, "missing secret": nil} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			users := halfSetUsers{Users: f.store.Users(), secret: secret}
			f.password.Authenticator = &service.CredentialAuthenticator{Users: users}
			f.mfa.Users = users

			pair, err := f.dispatcher.Dispatch(ctx, service.TokenRequest{
				GrantType: service.GrantTypePassword,
				Username:  "eve",
				Password:  "qwerty",
				ClientID:  "web",
			})
			require.Nil(t, pair, "the password alone must never yield tokens")

			var mfaErr *service.MFARequiredError
			require.ErrorAs(t, err, &mfaErr)

			pair, err = f.dispatcher.Dispatch(ctx, service.TokenRequest{
				GrantType: service.GrantTypeMFA,
				MFAToken:  mfaErr.MFAToken,
				MFACode:   "123456",
				ClientID:  "web",
			})
			require.Nil(t, pair)
			require.ErrorIs(t, err, service.ErrInvalidSecret)
		})
	}
}

func TestDispatcherRejectsUnknownGrants(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.dispatcher.Dispatch(ctx, service.TokenRequest{})
	require.ErrorIs(t, err, service.ErrInvalidRequest)

	_, err = f.dispatcher.Dispatch(ctx, service.TokenRequest{GrantType: "authorization_code"})
	require.ErrorIs(t, err, service.ErrUnsupportedGrantType)

	_, err = f.dispatcher.Dispatch(ctx, service.TokenRequest{
		GrantType: service.GrantTypePassword,
		Username:  "anna",
		Password:  "qwerty",
		ClientID:  "svc",
	})
	require.ErrorIs(t, err, service.ErrInvalidClient)
}
