package domain

import (
	"slices"
	"time"

	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

// Challenge is the server-side record behind an mfa_token: who passed the
// password step, for which client, asking for what. It is keyed by the
// token's fingerprint and is consumed exactly once.
type Challenge struct {
	TokenHash   string
	Username    string
	ClientID    string
	Scopes      []string
	Authorities jwtx.Authorities // always PreAuthOnly
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Expired reports whether c is no longer usable at now.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Clone deep-copies the slices so stores can hand out values safely.
func (c Challenge) Clone() Challenge {
	c.Scopes = slices.Clone(c.Scopes)
	return c
}
