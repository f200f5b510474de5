package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"

	authhttp "github.com/aussiebroadwan/twostep/internal/auth/http"
	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/pkg/httpx"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

// Challenge backends selectable with AUTH_CHALLENGE_STORE.
const (
	ChallengeStoreMemory = "memory"
	ChallengeStoreSQLite = "sqlite"
	ChallengeStoreRedis  = "redis"
)

// Signing key backends selectable with AUTH_KEY_STORE.
const (
	KeyStoreEphemeral = "ephemeral"
	KeyStoreSQLite    = "sqlite"
	KeyStoreRedis     = "redis"
)

type Config struct {
	Issuer       string `env:"AUTH_ISSUER"        envDefault:"twostep"`
	Algorithm    string `env:"AUTH_ALGORITHM"     envDefault:"EdDSA"`
	NumKeys      int    `env:"AUTH_NUM_KEYS"      envDefault:"3"`
	DatabaseFile string `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"`
	PepperFile   string `env:"AUTH_PEPPER_FILE"   envDefault:"pepper"`

	AccessTTL    time.Duration `env:"AUTH_ACCESS_TTL"    envDefault:"15m"`
	RefreshTTL   time.Duration `env:"AUTH_REFRESH_TTL"   envDefault:"168h"`
	ChallengeTTL time.Duration `env:"AUTH_CHALLENGE_TTL" envDefault:"5m"`

	// ChallengeStore picks where pending MFA challenges live: memory (single
	// instance), sqlite (the main database) or redis (shared by replicas).
	ChallengeStore string      `env:"AUTH_CHALLENGE_STORE" envDefault:"memory"`
	Redis          RedisConfig `envPrefix:"AUTH_REDIS_"`

	// KeyStore picks where signing keys live: ephemeral (new keys on every
	// start), sqlite or redis. Stored keys are sealed with the master key,
	// taken from AUTH_MASTER_KEY or else read from (or created at)
	// AUTH_MASTER_KEY_FILE. Replicas sharing keys must share the master key.
	KeyStore      string `env:"AUTH_KEY_STORE"       envDefault:"sqlite"`
	MasterKey     string `env:"AUTH_MASTER_KEY"`
	MasterKeyFile string `env:"AUTH_MASTER_KEY_FILE" envDefault:"master.key"`

	SeedUsersJSON   string `env:"AUTH_SEED_USERS"`
	SeedClientsJSON string `env:"AUTH_SEED_CLIENTS"`

	Env                  string        `env:"ENV"                   envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL"             envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT"            envDefault:"json"`
	Port                 int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingSchedule string        `env:"HOUSEKEEPING_SCHEDULE" envDefault:"@every 1m"`

	RateLimits RateLimitsConfig `envPrefix:"RATELIMIT_"`

	// Decoded from the JSON above by LoadConfig.
	seedUsers   []SeedUser
	seedClients []SeedClient
}

type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"`
	Prefix   string `env:"PREFIX"`
}

// RateLimitsConfig overrides the built-in profiles, e.g.
// RATELIMIT_STRICT_REQUESTS, RATELIMIT_STRICT_WINDOW_SEC, RATELIMIT_STRICT_BURST.
type RateLimitsConfig struct {
	Disabled bool             `env:"DISABLED"`
	Strict   RateLimitProfile `envPrefix:"STRICT_"`
	Moderate RateLimitProfile `envPrefix:"MODERATE_"`
	Lenient  RateLimitProfile `envPrefix:"LENIENT_"`
	Public   RateLimitProfile `envPrefix:"PUBLIC_"`
}

type RateLimitProfile struct {
	Requests  int `env:"REQUESTS"`
	WindowSec int `env:"WINDOW_SEC"`
	Burst     int `env:"BURST"`
}

// SeedUser is one entry of AUTH_SEED_USERS.
type SeedUser struct {
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	Authorities []string `json:"authorities"`
	MFASecret   string   `json:"mfa_secret,omitempty"`
}

// SeedClient is one entry of AUTH_SEED_CLIENTS. A client with a secret is
// confidential.
type SeedClient struct {
	ID     string   `json:"client_id"`
	Name   string   `json:"client_name,omitempty"`
	Secret string   `json:"client_secret,omitempty"`
	Scopes []string `json:"scopes"`
}

// LoadConfig reads the process environment.
func LoadConfig() (Config, error) {
	return parseConfig(env.ToMap(os.Environ()))
}

func parseConfig(environ map[string]string) (Config, error) {
	cfg := Config{
		RateLimits: RateLimitsConfig{
			Strict:   profileOf(httpx.StrictLimit),
			Moderate: profileOf(httpx.ModerateLimit),
			Lenient:  profileOf(httpx.LenientLimit),
			Public:   profileOf(httpx.PublicLimit),
		},
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.SeedUsersJSON != "" {
		if err := json.Unmarshal([]byte(cfg.SeedUsersJSON), &cfg.seedUsers); err != nil {
			return Config{}, fmt.Errorf("AUTH_SEED_USERS: %w", err)
		}
	}
	if cfg.SeedClientsJSON != "" {
		if err := json.Unmarshal([]byte(cfg.SeedClientsJSON), &cfg.seedClients); err != nil {
			return Config{}, fmt.Errorf("AUTH_SEED_CLIENTS: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	if !slices.Contains([]string{jwtx.AlgorithmEdDSA, jwtx.AlgorithmES256}, c.Algorithm) {
		errs = append(errs, fmt.Errorf("AUTH_ALGORITHM: unsupported algorithm %q", c.Algorithm))
	}
	if !slices.Contains([]string{ChallengeStoreMemory, ChallengeStoreSQLite, ChallengeStoreRedis}, c.ChallengeStore) {
		errs = append(errs, fmt.Errorf("AUTH_CHALLENGE_STORE: unknown backend %q", c.ChallengeStore))
	}
	if !slices.Contains([]string{KeyStoreEphemeral, KeyStoreSQLite, KeyStoreRedis}, c.KeyStore) {
		errs = append(errs, fmt.Errorf("AUTH_KEY_STORE: unknown backend %q", c.KeyStore))
	}
	if c.usesRedis() && c.Redis.Addr == "" {
		errs = append(errs, errors.New("AUTH_REDIS_ADDR is required when a store uses redis"))
	}
	if c.KeyStore != KeyStoreEphemeral && c.MasterKey == "" && c.MasterKeyFile == "" {
		errs = append(errs, errors.New("AUTH_MASTER_KEY or AUTH_MASTER_KEY_FILE is required for stored signing keys"))
	}
	if c.ChallengeTTL < service.MinChallengeTTL || c.ChallengeTTL > service.MaxChallengeTTL {
		errs = append(errs, fmt.Errorf("AUTH_CHALLENGE_TTL: %s is outside [%s, %s]",
			c.ChallengeTTL, service.MinChallengeTTL, service.MaxChallengeTTL))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TTL and AUTH_REFRESH_TTL must be positive"))
	}
	for i, u := range c.seedUsers {
		if u.Username == "" || u.Password == "" {
			errs = append(errs, fmt.Errorf("AUTH_SEED_USERS[%d]: username and password are required", i))
		}
	}
	for i, cl := range c.seedClients {
		if cl.ID == "" {
			errs = append(errs, fmt.Errorf("AUTH_SEED_CLIENTS[%d]: client_id is required", i))
		}
	}

	return errors.Join(errs...)
}

func (c Config) usesRedis() bool {
	return c.ChallengeStore == ChallengeStoreRedis || c.KeyStore == KeyStoreRedis
}

// signingKeysKey places the key set under the configured redis prefix.
func (c Config) signingKeysKey() string {
	if c.Redis.Prefix == "" {
		return ""
	}
	return c.Redis.Prefix + "signing_keys"
}

// HTTPRateLimits converts the profiles for the router. Disabled yields the
// zero value, which turns every limiter off.
func (c Config) HTTPRateLimits() authhttp.RateLimits {
	if c.RateLimits.Disabled {
		return authhttp.RateLimits{}
	}
	return authhttp.RateLimits{
		Strict:   c.RateLimits.Strict.limit(),
		Moderate: c.RateLimits.Moderate.limit(),
		Lenient:  c.RateLimits.Lenient.limit(),
		Public:   c.RateLimits.Public.limit(),
	}
}

func profileOf(l httpx.RateLimitConfig) RateLimitProfile {
	return RateLimitProfile{
		Requests:  l.Requests,
		WindowSec: int(l.Window.Seconds()),
		Burst:     l.Burst,
	}
}

func (p RateLimitProfile) limit() httpx.RateLimitConfig {
	return httpx.RateLimitConfig{
		Requests: p.Requests,
		Window:   time.Duration(p.WindowSec) * time.Second,
		Burst:    p.Burst,
	}
}
