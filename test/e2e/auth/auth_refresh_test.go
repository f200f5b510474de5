//go:build e2e

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/pkg/authsdk"
)

// TestRefreshRotation verifies that a refresh token works once and keeps the
// MFA evidence of the original login.
func TestRefreshRotation(t *testing.T) {
	baseURL := setupAuthContainer(t, withEnv(relaxedLimits))
	client := authsdk.NewSDKClient(baseURL, "web", "")

	challenge := startJohnLogin(t, client)
	tok, err := client.MFAGrant(t.Context(), challenge.MFAToken, generateTOTP(t, johnSecret), nil)
	require.NoError(t, err)

	rotated, err := client.RefreshGrant(t.Context(), tok.RefreshToken, nil)
	require.NoError(t, err)
	assertTokenResponse(t, rotated)

	info, err := client.UserInfo(t.Context(), rotated.AccessToken)
	require.NoError(t, err)
	require.True(t, info.MFA, "refreshed token should keep the mfa AMR")

	_, err = client.RefreshGrant(t.Context(), tok.RefreshToken, nil)
	require.ErrorIs(t, err, authsdk.ErrInvalidGrant, "used refresh token should be rejected")

	require.NoError(t, client.RevokeToken(t.Context(), rotated.RefreshToken, "refresh_token"))
	_, err = client.RefreshGrant(t.Context(), rotated.RefreshToken, nil)
	require.ErrorIs(t, err, authsdk.ErrInvalidGrant)
}
