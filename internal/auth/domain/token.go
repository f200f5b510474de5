package domain

import (
	"strings"
	"time"
)

// TokenPair is what a successful grant produces.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    time.Duration
	Scopes       []string
}

// Scope is the space-delimited wire form of the granted scopes.
func (p TokenPair) Scope() string { return strings.Join(p.Scopes, " ") }

// RefreshToken is the stored half of an opaque refresh token.
type RefreshToken struct {
	ID        string
	UserID    string
	ClientID  string
	TokenHash string
	SessionID string // stable across rotations
	Scopes    []string
	AMR       []string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Usable reports whether t can still be exchanged at now.
func (t RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Token types reported by introspection.
const (
	TokenTypeAccess  = "access_token"
	TokenTypeRefresh = "refresh_token"
	TokenTypeMFA     = "mfa_token"
)

// TokenInfo is the introspection view of any credential the service issued.
type TokenInfo struct {
	Active      bool
	TokenType   string
	Subject     string
	Username    string
	ClientID    string
	Scopes      []string
	Authorities []string
	AMR         []string
	SessionID   string
	Issuer      string
	Audience    []string
	JTI         string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}
