package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks a JWT's signature and claims.
type Verifier interface {
	Verify(token string) (Claims, error)
}

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrUnknownKID   = errors.New("jwtx: unknown kid")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// VerifyOptions are the expectations placed on every token.
type VerifyOptions struct {
	Algorithm string
	Issuer    string
	Audience  []string
	Leeway    time.Duration

	// Now is overridable in tests.
	Now func() time.Time
}

type keySetVerifier struct {
	keys *KeySet
	opts VerifyOptions
}

// NewVerifier returns a Verifier that resolves signing keys from keys by kid.
func NewVerifier(keys *KeySet, opts VerifyOptions) Verifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &keySetVerifier{keys: keys, opts: opts}
}

func (v *keySetVerifier) Verify(raw string) (Claims, error) {
	// exp/nbf are checked below against opts.Now so tests can move the clock.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{v.opts.Algorithm}),
		jwt.WithoutClaimsValidation(),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrUnknownKID
		}
		key, err := v.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
		}
		return key, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownKID):
		return Claims{}, ErrUnknownKID
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Claims{}, ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrInvalidSig
	default:
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidSig, err)
	}

	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing sub", ErrInvalidClaim)
	}
	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(v.opts.Audience); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateTimes(v.opts.Now().UTC(), v.opts.Leeway); err != nil {
		return Claims{}, err
	}
	return claims, nil
}
