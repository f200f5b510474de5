package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	authhttp "github.com/aussiebroadwan/twostep/internal/auth/http"
	"github.com/aussiebroadwan/twostep/pkg/httpx"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := parseConfig(map[string]string{})
	require.NoError(t, err)

	require.Equal(t, "twostep", cfg.Issuer)
	require.Equal(t, "EdDSA", cfg.Algorithm)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	require.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	require.Equal(t, ChallengeStoreMemory, cfg.ChallengeStore)
	require.Equal(t, KeyStoreSQLite, cfg.KeyStore)
	require.Equal(t, "master.key", cfg.MasterKeyFile)
	require.Equal(t, "@every 1m", cfg.HousekeepingSchedule)
	require.Equal(t, httpx.StrictLimit, cfg.HTTPRateLimits().Strict)
	require.Equal(t, httpx.PublicLimit, cfg.HTTPRateLimits().Public)
	require.Empty(t, cfg.seedUsers)
}

func TestParseConfigOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := parseConfig(map[string]string{
		"AUTH_ISSUER":                 "https://auth.example",
		"AUTH_ALGORITHM":              "ES256",
		"AUTH_CHALLENGE_TTL":          "90s",
		"AUTH_CHALLENGE_STORE":        "redis",
		"AUTH_REDIS_ADDR":             "localhost:6379",
		"AUTH_REDIS_DB":               "2",
		"AUTH_KEY_STORE":              "redis",
		"AUTH_MASTER_KEY":             "shared-secret",
		"PORT":                        "9000",
		"RATELIMIT_STRICT_REQUESTS":   "1000",
		"RATELIMIT_STRICT_WINDOW_SEC": "30",
		"AUTH_SEED_USERS":             `[{"username":"kim","password":"pw","authorities":["ROLE_USER"],"mfa_secret":"JBSWY3DPEHPK3PXP"}]`,
		"AUTH_SEED_CLIENTS":           `[{"client_id":"web","scopes":["profile"]}]`,
	})
	require.NoError(t, err)

	require.Equal(t, "https://auth.example", cfg.Issuer)
	require.Equal(t, 90*time.Second, cfg.ChallengeTTL)
	require.Equal(t, 2, cfg.Redis.DB)
	require.Equal(t, KeyStoreRedis, cfg.KeyStore)
	require.Equal(t, "shared-secret", cfg.MasterKey)
	require.Equal(t, 9000, cfg.Port)

	strict := cfg.HTTPRateLimits().Strict
	require.Equal(t, 1000, strict.Requests)
	require.Equal(t, 30*time.Second, strict.Window)
	require.Equal(t, httpx.StrictLimit.Burst, strict.Burst)

	require.Len(t, cfg.seedUsers, 1)
	require.Equal(t, "kim", cfg.seedUsers[0].Username)
	require.Equal(t, []string{"profile"}, cfg.seedClients[0].Scopes)
}

func TestParseConfigRejects(t *testing.T) {
	t.Parallel()

	for name, environ := range map[string]map[string]string{
		"unknown algorithm":     {"AUTH_ALGORITHM": "HS256"},
		"unknown backend":       {"AUTH_CHALLENGE_STORE": "etcd"},
		"redis without address": {"AUTH_CHALLENGE_STORE": "redis"},
		"unknown key store":     {"AUTH_KEY_STORE": "vault"},
		"redis keys no address": {"AUTH_KEY_STORE": "redis"},
		"ttl below range":       {"AUTH_CHALLENGE_TTL": "30s"},
		"ttl above range":       {"AUTH_CHALLENGE_TTL": "10m"},
		"bad duration":          {"AUTH_ACCESS_TTL": "soon"},
		"malformed seed json":   {"AUTH_SEED_USERS": `{"username":`},
		"seed without password": {"AUTH_SEED_USERS": `[{"username":"kim"}]`},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := parseConfig(environ)
			require.Error(t, err)
		})
	}
}

func TestRateLimitsCanBeDisabled(t *testing.T) {
	t.Parallel()

	cfg, err := parseConfig(map[string]string{"RATELIMIT_DISABLED": "true"})
	require.NoError(t, err)
	require.Equal(t, authhttp.RateLimits{}, cfg.HTTPRateLimits())
}
