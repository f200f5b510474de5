package domain_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestUserHasMFA(t *testing.T) {
	t.Parallel()

	now := time.Now()
	secret := "JBSWY3DPEHPK3PXP"
	empty := ""

	require.False(t, domain.User{}.HasMFA())
	require.False(t, domain.User{MFASecret: &secret}.HasMFA())
	require.Empty(t, domain.User{MFASecret: &secret}.TOTPSecret())

	// The flag alone requires a second factor, even with nothing to check it against.
	require.True(t, domain.User{MFAEnabled: &now}.HasMFA())
	require.True(t, domain.User{MFAEnabled: &now, MFASecret: &empty}.HasMFA())
	require.Empty(t, domain.User{MFAEnabled: &now}.TOTPSecret())

	u := domain.User{MFAEnabled: &now, MFASecret: &secret}
	require.True(t, u.HasMFA())
	require.Equal(t, secret, u.TOTPSecret())
}

func TestClientScopes(t *testing.T) {
	t.Parallel()

	anon := domain.AnonymousClient()
	require.True(t, anon.IsAnonymous())
	require.True(t, anon.AllowsScope("anything"))

	web := domain.Client{ID: "web", Scopes: []string{"read"}}
	require.False(t, web.IsConfidential())
	require.True(t, web.AllowsScope("read"))
	require.False(t, web.AllowsScope("write"))
}

func TestChallengeExpired(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	c := domain.Challenge{ExpiresAt: now.Add(time.Minute)}

	require.False(t, c.Expired(now))
	require.True(t, c.Expired(now.Add(time.Minute)))
}

func TestRefreshTokenUsable(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	rt := domain.RefreshToken{ExpiresAt: now.Add(time.Hour)}

	require.True(t, rt.Usable(now))
	require.False(t, rt.Usable(now.Add(2*time.Hour)))
	rt.Revoked = true
	require.False(t, rt.Usable(now))
}
