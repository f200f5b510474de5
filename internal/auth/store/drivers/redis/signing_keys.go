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
)

// DefaultSigningKeysKey holds the shared key set as one JSON document.
const DefaultSigningKeysKey = "twostep:signing_keys"

// SigningKeys shares the signing key set between replicas. The set is
// written once with SETNX and has no TTL.
type SigningKeys struct {
	client *goredis.Client
	key    string
}

var _ store.SigningKeys = (*SigningKeys)(nil)

func NewSigningKeysWithClient(client *goredis.Client, key string) *SigningKeys {
	if key == "" {
		key = DefaultSigningKeysKey
	}
	return &SigningKeys{client: client, key: key}
}

type keyRecord struct {
	Kid        string    `json:"kid"`
	Algorithm  string    `json:"alg"`
	PrivateKey []byte    `json:"private_key"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *SigningKeys) ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var records []keyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("redis: decode signing keys: %w", err)
	}

	keys := make([]domain.SigningKey, len(records))
	for i, r := range records {
		keys[i] = domain.SigningKey{
			Kid:                 r.Kid,
			Algorithm:           r.Algorithm,
			PrivateKeyEncrypted: r.PrivateKey,
			CreatedAt:           r.CreatedAt,
		}
	}
	return keys, nil
}

func (s *SigningKeys) InitSigningKeys(ctx context.Context, keys []domain.SigningKey) (bool, error) {
	if len(keys) == 0 {
		return false, errors.New("redis: no signing keys to store")
	}

	records := make([]keyRecord, len(keys))
	for i, k := range keys {
		records[i] = keyRecord{
			Kid:        k.Kid,
			Algorithm:  k.Algorithm,
			PrivateKey: k.PrivateKeyEncrypted,
			CreatedAt:  k.CreatedAt.UTC(),
		}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return false, fmt.Errorf("redis: encode signing keys: %w", err)
	}

	return s.client.SetNX(ctx, s.key, data, 0).Result()
}
