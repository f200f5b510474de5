package jwtx

import (
	"errors"
	"slices"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds public verification keys by kid. The issuer publishes it as
// JWKS; resource servers fill it from that JWKS.
type KeySet struct {
	mu   sync.RWMutex
	jwks JWKS
	pub  map[string]any
}

func NewKeySet() *KeySet {
	return &KeySet{pub: make(map[string]any)}
}

// AddSigner publishes the public half of s.
func (k *KeySet) AddSigner(s Signer) error {
	return k.AddJWK(s.PublicJWK())
}

func (k *KeySet) AddJWK(j JWK) error {
	key, err := j.PublicKey()
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, dup := k.pub[j.Kid]; dup {
		return errors.New("jwtx: duplicate kid " + j.Kid)
	}
	k.pub[j.Kid] = key
	k.jwks.Keys = append(k.jwks.Keys, j)
	return nil
}

func (k *KeySet) Get(kid string) (any, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if key, ok := k.pub[kid]; ok {
		return key, nil
	}
	return nil, ErrNoKey
}

// PublicJWKS returns a copy safe to serialise outside the lock.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return JWKS{Keys: slices.Clone(k.jwks.Keys)}
}

func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub) > 0
}

// ResetFromJWKS swaps the whole set, as a resource server does after
// refetching the issuer's JWKS. On error the old set is kept.
func (k *KeySet) ResetFromJWKS(jwks JWKS) error {
	next := make(map[string]any, len(jwks.Keys))
	for _, j := range jwks.Keys {
		key, err := j.PublicKey()
		if err != nil {
			return err
		}
		next[j.Kid] = key
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub = next
	k.jwks = JWKS{Keys: slices.Clone(jwks.Keys)}
	return nil
}
