package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer mints JWTs with a single private key.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
	jwk    JWK
}

// NewSigner loads a PKCS8 PEM private key for alg (EdDSA or ES256).
func NewSigner(alg, kid string, pemKey []byte) (Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM private key")
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PKCS8 PRIVATE KEY, got %q", block.Type)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}

	var method jwt.SigningMethod
	switch alg {
	case AlgorithmEdDSA:
		if _, ok := parsed.(ed25519.PrivateKey); !ok {
			return nil, errors.New("jwtx: EdDSA requires an Ed25519 key")
		}
		method = jwt.SigningMethodEdDSA
	case AlgorithmES256:
		k, ok := parsed.(*ecdsa.PrivateKey)
		if !ok || k.Curve != elliptic.P256() {
			return nil, errors.New("jwtx: ES256 requires a P-256 key")
		}
		method = jwt.SigningMethodES256
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", alg)
	}

	key := parsed.(crypto.Signer)
	jwk, err := NewJWK(kid, alg, key.Public())
	if err != nil {
		return nil, err
	}

	return &keySigner{kid: kid, method: method, key: key, jwk: jwk}, nil
}

func (s *keySigner) Alg() string    { return s.method.Alg() }
func (s *keySigner) KID() string    { return s.kid }
func (s *keySigner) PublicJWK() JWK { return s.jwk }

func (s *keySigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
