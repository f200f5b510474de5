//go:build e2e

package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/pkg/authsdk"
)

// TestTwoStepLogin walks john through password, challenge and TOTP.
func TestTwoStepLogin(t *testing.T) {
	baseURL := setupAuthContainer(t, withEnv(relaxedLimits))
	client := authsdk.NewSDKClient(baseURL, "web", "")

	challenge := startJohnLogin(t, client, "profile")
	t.Logf("Received MFA challenge, expires in %ds", challenge.ExpiresIn)

	tok, err := client.MFAGrant(t.Context(), challenge.MFAToken, generateTOTP(t, johnSecret), nil)
	require.NoError(t, err)
	assertTokenResponse(t, tok)
	require.Equal(t, "profile", tok.Scope)

	introspect, err := client.Introspect(t.Context(), tok.AccessToken, tok.AccessToken)
	require.NoError(t, err)
	require.True(t, introspect.Active)
	require.Contains(t, introspect.AMR, "pwd", "Should have password AMR")
	require.Contains(t, introspect.AMR, "mfa", "Should have MFA AMR")

	// The same mfa_token cannot be redeemed twice.
	_, err = client.MFAGrant(t.Context(), challenge.MFAToken, generateTOTP(t, johnSecret), nil)
	require.ErrorIs(t, err, authsdk.ErrInvalidGrant)
}

// TestPasswordOnlyAccount verifies anna gets tokens from the first step.
func TestPasswordOnlyAccount(t *testing.T) {
	baseURL := setupAuthContainer(t, withEnv(relaxedLimits))
	client := authsdk.NewSDKClient(baseURL, "web", "")

	tok, err := client.PasswordGrant(t.Context(), "anna", annaPassword, nil)
	require.NoError(t, err)
	assertTokenResponse(t, tok)

	info, err := client.UserInfo(t.Context(), tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "anna", info.Username)
	require.False(t, info.MFA)
	require.ElementsMatch(t, []string{"ROLE_USER", "ROLE_ADMIN"}, info.Authorities)
}

// TestMFATokenRestrictions covers the ways an mfa_token can be refused.
func TestMFATokenRestrictions(t *testing.T) {
	baseURL := setupAuthContainer(t, withEnv(relaxedLimits))
	web := authsdk.NewSDKClient(baseURL, "web", "")
	cli := authsdk.NewSDKClient(baseURL, "cli", "")

	t.Run("pending token is not an access token", func(t *testing.T) {
		challenge := startJohnLogin(t, web)

		_, err := web.UserInfo(t.Context(), challenge.MFAToken)
		require.ErrorIs(t, err, authsdk.ErrInvalidToken)
	})

	t.Run("wrong code burns the token", func(t *testing.T) {
		challenge := startJohnLogin(t, web)

		_, err := web.MFAGrant(t.Context(), challenge.MFAToken, "12345", nil)
		require.ErrorIs(t, err, authsdk.ErrInvalidGrant)

		_, err = web.MFAGrant(t.Context(), challenge.MFAToken, generateTOTP(t, johnSecret), nil)
		require.ErrorIs(t, err, authsdk.ErrInvalidGrant)
	})

	t.Run("token is bound to the client that started the login", func(t *testing.T) {
		challenge := startJohnLogin(t, web)

		_, err := cli.MFAGrant(t.Context(), challenge.MFAToken, generateTOTP(t, johnSecret), nil)
		var oerr *authsdk.OAuth2Error
		require.ErrorAs(t, err, &oerr)
		require.Equal(t, http.StatusUnauthorized, oerr.StatusCode)
		require.Equal(t, authsdk.ErrorCodeInvalidClient, oerr.Code)
	})

	t.Run("scope cannot widen at the second step", func(t *testing.T) {
		challenge := startJohnLogin(t, web, "profile")

		_, err := web.MFAGrant(t.Context(), challenge.MFAToken, generateTOTP(t, johnSecret), []string{"profile", "email"})
		require.ErrorIs(t, err, authsdk.ErrInvalidScope)
	})

	t.Run("revoked token cannot be redeemed", func(t *testing.T) {
		challenge := startJohnLogin(t, web)

		require.NoError(t, web.RevokeToken(t.Context(), challenge.MFAToken, "mfa_token"))

		_, err := web.MFAGrant(t.Context(), challenge.MFAToken, generateTOTP(t, johnSecret), nil)
		require.ErrorIs(t, err, authsdk.ErrInvalidGrant)
	})
}

// TestReplicasShareRedis runs two instances against one Redis: a login
// started on one finishes on the other, and tokens minted by either are
// accepted by both.
func TestReplicasShareRedis(t *testing.T) {
	nw := setupRedis(t)
	redisEnv := map[string]string{
		"AUTH_CHALLENGE_STORE": "redis",
		"AUTH_KEY_STORE":       "redis",
		"AUTH_REDIS_ADDR":      "redis:6379",
		"AUTH_MASTER_KEY":      "e2e-shared-master-key",
	}

	first := authsdk.NewSDKClient(setupAuthContainer(t, withNetwork(nw), withEnv(redisEnv), withEnv(relaxedLimits)), "web", "")
	second := authsdk.NewSDKClient(setupAuthContainer(t, withNetwork(nw), withEnv(redisEnv), withEnv(relaxedLimits)), "web", "")

	ready, err := second.GetReadiness(t.Context())
	assertHealthy(t, ready, err)
	require.Equal(t, "ok", ready.Checks.Challenges)

	t.Run("same signing keys", func(t *testing.T) {
		a, err := first.GetJWKS(t.Context())
		require.NoError(t, err)
		b, err := second.GetJWKS(t.Context())
		require.NoError(t, err)
		require.ElementsMatch(t, a.Keys, b.Keys)

		info, err := second.UserInfo(t.Context(), mustAnnaToken(t, first))
		require.NoError(t, err)
		require.Equal(t, "anna", info.Username)
	})

	t.Run("challenge finishes on the other replica", func(t *testing.T) {
		challenge := startJohnLogin(t, first)

		info, err := second.Introspect(t.Context(), mustAnnaToken(t, first), challenge.MFAToken)
		require.NoError(t, err)
		require.True(t, info.Active)
		require.Equal(t, []string{"PRE_AUTH"}, info.Authorities)

		tok, err := second.MFAGrant(t.Context(), challenge.MFAToken, generateTOTP(t, johnSecret), nil)
		require.NoError(t, err)
		assertTokenResponse(t, tok)

		_, err = first.MFAGrant(t.Context(), challenge.MFAToken, generateTOTP(t, johnSecret), nil)
		require.ErrorIs(t, err, authsdk.ErrInvalidGrant)

		// The access token from the second replica works on the first.
		me, err := first.UserInfo(t.Context(), tok.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "john", me.Username)
	})
}

func mustAnnaToken(t *testing.T, client *authsdk.SDKClient) string {
	t.Helper()
	tok, err := client.PasswordGrant(t.Context(), "anna", annaPassword, nil)
	require.NoError(t, err)
	return tok.AccessToken
}
