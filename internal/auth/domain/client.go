package domain

import (
	"slices"
	"time"
)

// Client is a registered OAuth2 client. A client without a SecretHash is
// public; one with a SecretHash must present its secret.
type Client struct {
	ID         string
	Name       string
	SecretHash string
	Scopes     []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AnonymousClient stands in when a request names no client_id.
func AnonymousClient() Client { return Client{} }

// IsAnonymous reports whether c is the stand-in for "no client".
func (c Client) IsAnonymous() bool { return c.ID == "" }

func (c Client) IsConfidential() bool { return c.SecretHash != "" }

// AllowsScope reports whether c may be granted scope. The anonymous client
// has no ceiling.
func (c Client) AllowsScope(scope string) bool {
	return c.IsAnonymous() || slices.Contains(c.Scopes, scope)
}
