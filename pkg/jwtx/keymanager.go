package jwtx

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/aussiebroadwan/twostep/pkg/cryptox"
)

const (
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// KeyManager owns the issuer's signing keys. Ephemeral managers generate
// them at startup, so a restart invalidates every access token already
// handed out; persistent managers load them from a KeyStore.
type KeyManager struct {
	Verifier Verifier
	KeySet   *KeySet

	algorithm string
	signers   []Signer
}

// KeyManagerOptions configures NewEphemeralKeyManager.
type KeyManagerOptions struct {
	Algorithm string // EdDSA or ES256
	Issuer    string
	Audience  []string
	Leeway    time.Duration

	// NumKeys is clamped to [1, 10]; zero means 3.
	NumKeys int
}

func (o KeyManagerOptions) numKeys() int {
	switch {
	case o.NumKeys <= 0:
		return 3
	case o.NumKeys > 10:
		return 10
	}
	return o.NumKeys
}

// NewEphemeralKeyManager generates opts.NumKeys fresh keys and a verifier
// bound to them.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	n := opts.numKeys()
	signers := make([]Signer, 0, n)
	for i := range n {
		kid, pemKey, err := generateKey(opts.Algorithm)
		if err != nil {
			return nil, fmt.Errorf("jwtx: signing key %d: %w", i+1, err)
		}
		s, err := NewSigner(opts.Algorithm, kid, pemKey)
		if err != nil {
			return nil, fmt.Errorf("jwtx: signing key %d: %w", i+1, err)
		}
		signers = append(signers, s)
	}

	return newKeyManager(opts, signers)
}

func newKeyManager(opts KeyManagerOptions, signers []Signer) (*KeyManager, error) {
	keyset := NewKeySet()
	for _, s := range signers {
		if err := keyset.AddSigner(s); err != nil {
			return nil, fmt.Errorf("jwtx: publish key %s: %w", s.KID(), err)
		}
	}

	return &KeyManager{
		Verifier: NewVerifier(keyset, VerifyOptions{
			Algorithm: opts.Algorithm,
			Issuer:    opts.Issuer,
			Audience:  opts.Audience,
			Leeway:    opts.Leeway,
		}),
		KeySet:    keyset,
		algorithm: opts.Algorithm,
		signers:   signers,
	}, nil
}

// generateKey returns a fresh kid and PKCS8 PEM private key for alg.
func generateKey(alg string) (string, []byte, error) {
	var (
		pemKey []byte
		err    error
	)
	switch alg {
	case AlgorithmEdDSA:
		pemKey, err = cryptox.GenerateEd25519Key()
	case AlgorithmES256:
		pemKey, err = cryptox.GenerateES256Key()
	default:
		return "", nil, fmt.Errorf("unsupported algorithm %q (supported: EdDSA, ES256)", alg)
	}
	if err != nil {
		return "", nil, err
	}

	kid, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", nil, err
	}
	return "twostep-" + kid, pemKey, nil
}

func (km *KeyManager) Algorithm() string { return km.algorithm }

func (km *KeyManager) IsReady() bool { return km.KeySet.IsReady() }

func (km *KeyManager) NumSigners() int { return len(km.signers) }

// GetSigner picks one of the signing keys at random.
func (km *KeyManager) GetSigner() Signer {
	if len(km.signers) == 1 {
		return km.signers[0]
	}
	return km.signers[rand.IntN(len(km.signers))] // #nosec G404 - key selection, not a secret
}
