package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// PasswordVerifier reports whether password matches the stored hash.
type PasswordVerifier func(password, hash string) bool

// CredentialAuthenticator checks a username and password against the user
// store.
type CredentialAuthenticator struct {
	Users store.Users

	// Verify defaults to cryptox.CheckPassword.
	Verify PasswordVerifier
}

// Authenticate returns the user for a correct username and password. An
// unknown user and a wrong password are indistinguishable to the caller
// and cost the same single hash verification.
func (a *CredentialAuthenticator) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	verify := a.Verify
	if verify == nil {
		verify = cryptox.CheckPassword
	}

	u, err := a.Users.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		cryptox.BurnPasswordCheck(password)
		slogx.FromContext(ctx).Info("password rejected", slog.String("username", username))
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if !verify(password, u.PasswordHash) {
		slogx.FromContext(ctx).Info("password rejected", slog.String("username", username))
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}
