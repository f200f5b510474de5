// Package redis stores MFA challenges in Redis so several token service
// replicas can share them. Expiry is delegated to key TTLs.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

// DefaultPrefix namespaces challenge keys.
const DefaultPrefix = "twostep:mfa:"

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type Challenges struct {
	client *goredis.Client
	prefix string
}

var _ store.Challenges = (*Challenges)(nil)

// Connect opens a client and verifies the connection.
func Connect(ctx context.Context, cfg Config) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: address is required")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewChallenges connects to Redis and verifies the connection. Close
// releases the client.
func NewChallenges(ctx context.Context, cfg Config) (*Challenges, error) {
	client, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewChallengesWithClient(client, cfg.Prefix), nil
}

// NewChallengesWithClient wraps an existing client.
func NewChallengesWithClient(client *goredis.Client, prefix string) *Challenges {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Challenges{client: client, prefix: prefix}
}

// record is the JSON payload kept under each key.
type record struct {
	Username  string    `json:"username"`
	ClientID  string    `json:"client_id,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *Challenges) key(hash string) string { return c.prefix + hash }

func (c *Challenges) CreateChallenge(ctx context.Context, ch domain.Challenge) error {
	// Taken from the record's own clock, not the server's.
	ttl := ch.ExpiresAt.Sub(ch.IssuedAt)
	if ttl <= 0 {
		return errors.New("redis: challenge expires before it is issued")
	}

	data, err := json.Marshal(record{
		Username:  ch.Username,
		ClientID:  ch.ClientID,
		Scopes:    ch.Scopes,
		IssuedAt:  ch.IssuedAt.UTC(),
		ExpiresAt: ch.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("redis: encode challenge: %w", err)
	}

	ok, err := c.client.SetNX(ctx, c.key(ch.TokenHash), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrAlreadyExists
	}
	return nil
}

// ConsumeChallenge relies on GETDEL, which is atomic on the server.
func (c *Challenges) ConsumeChallenge(ctx context.Context, hash string, now time.Time) (domain.Challenge, error) {
	data, err := c.client.GetDel(ctx, c.key(hash)).Bytes()
	return decode(hash, data, err, now)
}

func (c *Challenges) GetChallenge(ctx context.Context, hash string, now time.Time) (domain.Challenge, error) {
	data, err := c.client.Get(ctx, c.key(hash)).Bytes()
	return decode(hash, data, err, now)
}

func (c *Challenges) DeleteChallenge(ctx context.Context, hash string) error {
	return c.client.Del(ctx, c.key(hash)).Err()
}

// DeleteExpiredChallenges is a no-op; Redis evicts keys on TTL.
func (c *Challenges) DeleteExpiredChallenges(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (c *Challenges) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *Challenges) Close() error { return c.client.Close() }

func decode(hash string, data []byte, err error, now time.Time) (domain.Challenge, error) {
	if errors.Is(err, goredis.Nil) {
		return domain.Challenge{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Challenge{}, err
	}

	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.Challenge{}, fmt.Errorf("redis: decode challenge: %w", err)
	}

	ch := domain.Challenge{
		TokenHash:   hash,
		Username:    r.Username,
		ClientID:    r.ClientID,
		Scopes:      r.Scopes,
		Authorities: jwtx.PreAuthOnly(),
		IssuedAt:    r.IssuedAt,
		ExpiresAt:   r.ExpiresAt,
	}
	// Key TTLs have millisecond granularity; the stored expiry is authoritative.
	if ch.Expired(now) {
		return domain.Challenge{}, store.ErrNotFound
	}
	return ch, nil
}
