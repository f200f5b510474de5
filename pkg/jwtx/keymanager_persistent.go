package jwtx

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SigningKeyRecord is a stored signing key. It mirrors the domain type so
// this package does not depend on the store.
type SigningKeyRecord struct {
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
}

// KeyStore persists the shared signing key set.
type KeyStore interface {
	ListSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	// InitSigningKeys stores keys only if no keys exist yet and reports
	// whether it did. Of concurrent callers exactly one wins.
	InitSigningKeys(ctx context.Context, keys []SigningKeyRecord) (bool, error)
}

// KeySealer encrypts private key material at rest.
type KeySealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// PersistentKeyManagerOptions configures NewPersistentKeyManager. NumKeys
// only applies when the store is empty.
type PersistentKeyManagerOptions struct {
	KeyManagerOptions

	Store  KeyStore
	Sealer KeySealer
}

// NewPersistentKeyManager loads the key set from opts.Store, generating and
// storing one first if the store is empty. Every instance pointed at the
// same store and master key signs and verifies with the same keys, and
// tokens survive restarts.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*KeyManager, error) {
	if opts.Store == nil || opts.Sealer == nil {
		return nil, errors.New("jwtx: Store and Sealer are required for a persistent key manager")
	}
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	records, err := opts.Store.ListSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: load signing keys: %w", err)
	}

	if len(records) == 0 {
		fresh, err := generateRecords(opts)
		if err != nil {
			return nil, err
		}

		created, err := opts.Store.InitSigningKeys(ctx, fresh)
		if err != nil {
			return nil, fmt.Errorf("jwtx: store signing keys: %w", err)
		}
		records = fresh
		if !created {
			// Another instance initialised the set first.
			if records, err = opts.Store.ListSigningKeys(ctx); err != nil {
				return nil, fmt.Errorf("jwtx: load signing keys: %w", err)
			}
		}
	}
	if len(records) == 0 {
		return nil, errors.New("jwtx: key store returned no signing keys")
	}

	signers := make([]Signer, 0, len(records))
	for _, rec := range records {
		if rec.Algorithm != opts.Algorithm {
			return nil, fmt.Errorf("jwtx: stored key %s uses %s but %s is configured",
				rec.Kid, rec.Algorithm, opts.Algorithm)
		}

		pemKey, err := opts.Sealer.Open(rec.PrivateKeyEncrypted)
		if err != nil {
			return nil, fmt.Errorf("jwtx: decrypt key %s: %w", rec.Kid, err)
		}
		s, err := NewSigner(rec.Algorithm, rec.Kid, pemKey)
		if err != nil {
			return nil, fmt.Errorf("jwtx: load key %s: %w", rec.Kid, err)
		}
		signers = append(signers, s)
	}

	return newKeyManager(opts.KeyManagerOptions, signers)
}

func generateRecords(opts PersistentKeyManagerOptions) ([]SigningKeyRecord, error) {
	n := opts.numKeys()
	now := time.Now().UTC()

	records := make([]SigningKeyRecord, 0, n)
	for i := range n {
		kid, pemKey, err := generateKey(opts.Algorithm)
		if err != nil {
			return nil, fmt.Errorf("jwtx: signing key %d: %w", i+1, err)
		}
		sealed, err := opts.Sealer.Seal(pemKey)
		if err != nil {
			return nil, fmt.Errorf("jwtx: encrypt key %d: %w", i+1, err)
		}
		records = append(records, SigningKeyRecord{
			Kid:                 kid,
			Algorithm:           opts.Algorithm,
			PrivateKeyEncrypted: sealed,
			CreatedAt:           now,
		})
	}
	return records, nil
}
