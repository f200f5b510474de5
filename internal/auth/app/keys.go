package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

// InitAuthKeys builds the KeyManager for cfg.KeyStore.
//
//   - ephemeral: keys are generated on startup and kept in memory. Access
//     tokens stop verifying when the process restarts.
//   - sqlite, redis: keys are sealed with the master key and stored in keys.
//     The first instance to start generates them; later starts and other
//     replicas load the same set.
func InitAuthKeys(ctx context.Context, cfg Config, keys store.SigningKeys, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		Audience:  nil, // audience is the client id, checked by resource servers
		NumKeys:   cfg.NumKeys,
	}

	if cfg.KeyStore == KeyStoreEphemeral {
		keyManager, err := jwtx.NewEphemeralKeyManager(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
		}

		logger.Info("generated ephemeral signing keys",
			"algorithm", keyManager.Algorithm(),
			"num_keys", keyManager.NumSigners(),
			"issuer", cfg.Issuer,
		)
		logger.Warn("access tokens issued before this start are no longer valid")
		return keyManager, nil
	}

	sealer, err := masterKeyCipher(cfg)
	if err != nil {
		return nil, err
	}

	keyManager, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
		KeyManagerOptions: opts,
		Store:             store.NewKeyStoreAdapter(keys),
		Sealer:            sealer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize persistent key manager: %w", err)
	}

	logger.Info("signing keys loaded",
		"key_store", cfg.KeyStore,
		"algorithm", keyManager.Algorithm(),
		"num_keys", keyManager.NumSigners(),
		"issuer", cfg.Issuer,
	)
	return keyManager, nil
}

func masterKeyCipher(cfg Config) (*cryptox.KeyCipher, error) {
	if cfg.MasterKey != "" {
		return cryptox.NewKeyCipher([]byte(cfg.MasterKey))
	}
	c, err := cryptox.LoadKeyCipher(cfg.MasterKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key: %w", err)
	}
	return c, nil
}
