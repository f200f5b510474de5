package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Authentication method references carried in the "amr" claim.
const (
	AMRPassword = "pwd"
	AMROTP      = "otp"
	AMRMFA      = "mfa"
	AMRRefresh  = "refresh"
)

// Claims are the access-token claims shared by the issuer and every
// resource server that verifies its tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Session ID, stable across refresh rotations.
	SID string `json:"sid,omitempty"`

	// ClientID is the OAuth2 client the token was issued to.
	ClientID string `json:"client_id,omitempty"`

	Scopes      []string `json:"scopes,omitempty"`
	Authorities []string `json:"authorities,omitempty"`

	// AMR lists how the subject authenticated, e.g. ["pwd","otp","mfa"].
	AMR []string `json:"amr,omitempty"`

	Username string `json:"username,omitempty"`
}

// AccessParams describes the token being minted.
type AccessParams struct {
	Subject     string
	SessionID   string
	ClientID    string
	Username    string
	Scopes      []string
	Authorities Authorities
	AMR         []string
	Issuer      string
	Audience    []string
	TTL         time.Duration
}

// NewAccessClaims builds claims for p, issued at now.
func NewAccessClaims(p AccessParams, now time.Time) Claims {
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer,
			Subject:   p.Subject,
			Audience:  jwt.ClaimStrings(p.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		SID:         p.SessionID,
		ClientID:    p.ClientID,
		Scopes:      slices.Clone(p.Scopes),
		Authorities: p.Authorities.Names(),
		AMR:         slices.Clone(p.AMR),
		Username:    p.Username,
	}
}

// NewJTI returns a random URL-safe "jti".
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// AuthoritySet interprets the authorities claim.
func (c *Claims) AuthoritySet() Authorities {
	return ParseAuthorities(c.Authorities)
}

// HasScope reports whether scope was granted.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// ValidateIssuer checks iss. An empty expectation accepts anything.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected != "" && c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience passes if any expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateTimes checks exp and nbf against now with a clock-skew leeway.
func (c *Claims) ValidateTimes(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
