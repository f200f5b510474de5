//go:build e2e

package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/pkg/authsdk"
)

// TestRateLimitTokenEndpoint verifies the strict profile (5 req/min) on the
// token endpoint, keyed by address and username.
func TestRateLimitTokenEndpoint(t *testing.T) {
	baseURL := setupAuthContainer(t)
	client := authsdk.NewSDKClient(baseURL, "", "")

	for i := range 5 {
		_, err := client.PasswordGrant(t.Context(), "anna", "wrong", nil)
		require.ErrorIs(t, err, authsdk.ErrInvalidGrant, "request %d should not be rate limited", i+1)
	}

	_, err := client.PasswordGrant(t.Context(), "anna", "wrong", nil)
	var oerr *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, http.StatusTooManyRequests, oerr.StatusCode)

	// Another username from the same address has its own bucket.
	tok, err := client.PasswordGrant(t.Context(), "john", "wrong", nil)
	require.Nil(t, tok)
	require.ErrorIs(t, err, authsdk.ErrInvalidGrant)
}
