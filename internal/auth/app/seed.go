package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/idx"
)

// demoUsers are created in dev when no seed users are configured and the
// database is empty.
var demoUsers = []SeedUser{
	{Username: "john", Password: "pass", Authorities: []string{"ROLE_USER"}, MFASecret: "JBSWY3DPEHPK3PXP"},
	{Username: "anna", Password: "qwerty", Authorities: []string{"ROLE_USER", "ROLE_ADMIN"}},
}

// Seed upserts the configured users and clients.
func Seed(ctx context.Context, st store.Store, cfg Config, logger *slog.Logger) error {
	users := cfg.seedUsers
	if len(users) == 0 && cfg.Env == "dev" {
		empty, err := st.Users().IsEmpty(ctx)
		if err != nil {
			return fmt.Errorf("check users: %w", err)
		}
		if empty {
			logger.Warn("seeding demo users", "count", len(demoUsers))
			users = demoUsers
		}
	}

	return st.WithTx(ctx, func(tx store.Tx) error {
		for _, su := range users {
			u, err := su.user(time.Now().UTC())
			if err != nil {
				return err
			}
			if err := tx.Users().UpsertUser(ctx, u); err != nil {
				return fmt.Errorf("seed user %q: %w", su.Username, err)
			}
			logger.Info("seeded user", "username", su.Username, "mfa", u.HasMFA())
		}

		for _, sc := range cfg.seedClients {
			c, err := sc.client()
			if err != nil {
				return err
			}
			if err := tx.Clients().UpsertClient(ctx, c); err != nil {
				return fmt.Errorf("seed client %q: %w", sc.ID, err)
			}
			logger.Info("seeded client", "client_id", sc.ID, "confidential", c.IsConfidential())
		}
		return nil
	})
}

func (su SeedUser) user(now time.Time) (domain.User, error) {
	hash, err := cryptox.HashPassword(su.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password for %q: %w", su.Username, err)
	}

	u := domain.User{
		ID:           idx.New().String(),
		Username:     su.Username,
		PasswordHash: hash,
		Authorities:  su.Authorities,
	}
	if su.MFASecret != "" {
		secret := su.MFASecret
		u.MFAEnabled = &now
		u.MFASecret = &secret
	}
	return u, nil
}

func (sc SeedClient) client() (domain.Client, error) {
	c := domain.Client{
		ID:     sc.ID,
		Name:   sc.Name,
		Scopes: sc.Scopes,
	}
	if sc.Secret != "" {
		hash, err := cryptox.HashPassword(sc.Secret)
		if err != nil {
			return domain.Client{}, fmt.Errorf("hash secret for client %q: %w", sc.ID, err)
		}
		c.SecretHash = hash
	}
	return c, nil
}
