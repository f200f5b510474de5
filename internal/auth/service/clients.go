package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// ClientAuthenticator resolves the OAuth2 client behind a token request.
type ClientAuthenticator struct {
	Clients store.Clients

	// Verify defaults to cryptox.CheckPassword.
	Verify PasswordVerifier
}

// Authenticate returns the client named by clientID. No clientID yields the
// anonymous client; an unknown id or a confidential client presenting the
// wrong secret yields ErrInvalidClient.
func (a *ClientAuthenticator) Authenticate(ctx context.Context, clientID, secret string) (domain.Client, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return domain.AnonymousClient(), nil
	}

	c, err := a.Clients.GetClientByID(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Info("unknown client", slog.String("client_id", clientID))
		return domain.Client{}, ErrInvalidClient
	}
	if err != nil {
		return domain.Client{}, fmt.Errorf("lookup client: %w", err)
	}

	if c.IsConfidential() {
		verify := a.Verify
		if verify == nil {
			verify = cryptox.CheckPassword
		}
		if secret == "" || !verify(secret, c.SecretHash) {
			slogx.FromContext(ctx).Info("client authentication failed", slog.String("client_id", clientID))
			return domain.Client{}, ErrInvalidClient
		}
	}
	return c, nil
}

// ResolveScopes picks the scopes for a fresh grant. No request means every
// scope the client holds; otherwise each requested scope must be allowed.
func ResolveScopes(c domain.Client, requested []string) ([]string, error) {
	requested = dedupe(requested)
	if len(requested) == 0 {
		return slices.Clone(c.Scopes), nil
	}
	for _, s := range requested {
		if !c.AllowsScope(s) {
			return nil, ErrInvalidScope
		}
	}
	return requested, nil
}

// NarrowScopes allows a follow-up request to keep or drop scopes from
// original but never to add one. No request keeps original.
func NarrowScopes(original, requested []string) ([]string, error) {
	requested = dedupe(requested)
	if len(requested) == 0 {
		return slices.Clone(original), nil
	}
	for _, s := range requested {
		if !slices.Contains(original, s) {
			return nil, ErrInvalidScope
		}
	}
	return requested, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
