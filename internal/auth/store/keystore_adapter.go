package store

import (
	"context"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

// KeyStoreAdapter lets jwtx load and store signing keys through any
// SigningKeys backend without importing the domain package.
type KeyStoreAdapter struct {
	keys SigningKeys
}

var _ jwtx.KeyStore = (*KeyStoreAdapter)(nil)

func NewKeyStoreAdapter(keys SigningKeys) *KeyStoreAdapter {
	return &KeyStoreAdapter{keys: keys}
}

func (a *KeyStoreAdapter) ListSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error) {
	keys, err := a.keys.ListSigningKeys(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]jwtx.SigningKeyRecord, len(keys))
	for i, k := range keys {
		records[i] = jwtx.SigningKeyRecord{
			Kid:                 k.Kid,
			Algorithm:           k.Algorithm,
			PrivateKeyEncrypted: k.PrivateKeyEncrypted,
			CreatedAt:           k.CreatedAt,
		}
	}
	return records, nil
}

func (a *KeyStoreAdapter) InitSigningKeys(ctx context.Context, records []jwtx.SigningKeyRecord) (bool, error) {
	keys := make([]domain.SigningKey, len(records))
	for i, r := range records {
		keys[i] = domain.SigningKey{
			Kid:                 r.Kid,
			Algorithm:           r.Algorithm,
			PrivateKeyEncrypted: r.PrivateKeyEncrypted,
			CreatedAt:           r.CreatedAt,
		}
	}
	return a.keys.InitSigningKeys(ctx, keys)
}
