package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

// JWK is a public signing key in RFC 7517 form. Only OKP/Ed25519 and
// EC/P-256 keys are produced or understood.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"` // EC only
}

// JWKS is the document served at /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// NewJWK describes pub as a signing JWK.
func NewJWK(kid, alg string, pub any) (JWK, error) {
	switch k := pub.(type) {
	case ed25519.PublicKey:
		return JWK{
			Kty: "OKP",
			Use: "sig",
			Alg: alg,
			Kid: kid,
			Crv: "Ed25519",
			X:   base64.RawURLEncoding.EncodeToString(k),
		}, nil

	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return JWK{}, fmt.Errorf("jwtx: unsupported EC curve %s", k.Curve.Params().Name)
		}
		var x, y [32]byte
		k.X.FillBytes(x[:])
		k.Y.FillBytes(y[:])
		return JWK{
			Kty: "EC",
			Use: "sig",
			Alg: alg,
			Kid: kid,
			Crv: "P-256",
			X:   base64.RawURLEncoding.EncodeToString(x[:]),
			Y:   base64.RawURLEncoding.EncodeToString(y[:]),
		}, nil

	default:
		return JWK{}, fmt.Errorf("jwtx: unsupported public key %T", pub)
	}
}

// PublicKey decodes j back into a crypto public key.
func (j JWK) PublicKey() (any, error) {
	switch j.Kty {
	case "OKP":
		if j.Crv != "Ed25519" {
			return nil, errors.New("jwtx: unsupported OKP curve " + j.Crv)
		}
		x, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, fmt.Errorf("jwtx: decode x: %w", err)
		}
		if len(x) != ed25519.PublicKeySize {
			return nil, errors.New("jwtx: invalid Ed25519 public key size")
		}
		return ed25519.PublicKey(x), nil

	case "EC":
		if j.Crv != "P-256" {
			return nil, errors.New("jwtx: unsupported EC curve " + j.Crv)
		}
		x, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, fmt.Errorf("jwtx: decode x: %w", err)
		}
		y, err := base64.RawURLEncoding.DecodeString(j.Y)
		if err != nil {
			return nil, fmt.Errorf("jwtx: decode y: %w", err)
		}
		pub := &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(x),
			Y:     new(big.Int).SetBytes(y),
		}
		if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
			return nil, errors.New("jwtx: EC point not on curve")
		}
		return pub, nil

	default:
		return nil, errors.New("jwtx: unsupported kty " + j.Kty)
	}
}
