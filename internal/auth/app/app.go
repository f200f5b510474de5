package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	httpapi "github.com/aussiebroadwan/twostep/internal/auth/http"
	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/twostep/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/twostep/internal/auth/store/memory"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the token service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	redis      *goredis.Client
	challenges store.Challenges
	keyManager *jwtx.KeyManager

	// Services
	challengeService    *service.ChallengeService
	tokenService        *service.TokenService
	dispatcher          *service.GrantDispatcher
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "twostep",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	ctx := context.Background()
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initRedis(ctx); err != nil {
		app.closeStores()
		return nil, err
	}
	app.initChallengeStore()

	keyManager, err := InitAuthKeys(ctx, app.cfg, app.signingKeys(), app.logger)
	if err != nil {
		app.closeStores()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	if err := app.initServices(); err != nil {
		app.closeStores()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler exposes the router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	if err := app.housekeepingService.Start(); err != nil {
		return err
	}

	app.logger.Info("token service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"challenge_store", app.cfg.ChallengeStore,
		"key_store", app.cfg.KeyStore,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		app.closeStores()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down token service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("token service stopped")
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initDatabase opens the database, applies migrations and seeds it
func (app *Application) initDatabase(ctx context.Context) error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.logger.Info("database migrations applied successfully")

	if err := Seed(ctx, db, app.cfg, app.logger); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to seed database: %w", err)
	}
	return nil
}

// initRedis connects when either store is configured to use redis
func (app *Application) initRedis(ctx context.Context) error {
	if !app.cfg.usesRedis() {
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := redis.Connect(connectCtx, redis.Config{
		Addr:     app.cfg.Redis.Addr,
		Password: app.cfg.Redis.Password,
		DB:       app.cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.redis = client
	app.logger.Info("redis connected", "addr", app.cfg.Redis.Addr)
	return nil
}

// initChallengeStore selects where pending MFA challenges are kept
func (app *Application) initChallengeStore() {
	switch app.cfg.ChallengeStore {
	case ChallengeStoreRedis:
		app.challenges = redis.NewChallengesWithClient(app.redis, app.cfg.Redis.Prefix)
	case ChallengeStoreSQLite:
		app.challenges = app.db.Challenges()
	default:
		app.challenges = memory.NewChallenges()
	}

	app.logger.Info("mfa challenge store ready", "backend", app.cfg.ChallengeStore)
}

// signingKeys returns the backend for stored signing keys, nil when ephemeral
func (app *Application) signingKeys() store.SigningKeys {
	switch app.cfg.KeyStore {
	case KeyStoreRedis:
		return redis.NewSigningKeysWithClient(app.redis, app.cfg.signingKeysKey())
	case KeyStoreSQLite:
		return app.db.SigningKeys()
	}
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	app.challengeService = &service.ChallengeService{
		Store: app.challenges,
		TTL:   app.cfg.ChallengeTTL,
	}

	app.tokenService = &service.TokenService{
		KeyManager: app.keyManager,
		Store:      app.db,
		Challenges: app.challengeService,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}

	app.dispatcher = &service.GrantDispatcher{
		Clients: &service.ClientAuthenticator{Clients: app.db.Clients()},
		Password: &service.PasswordGrant{
			Authenticator: &service.CredentialAuthenticator{Users: app.db.Users()},
			Challenges:    app.challengeService,
			Tokens:        app.tokenService,
			ChallengeTTL:  app.cfg.ChallengeTTL,
		},
		MFA: &service.MFAGrant{
			Users:      app.db.Users(),
			Challenges: app.challengeService,
			Tokens:     app.tokenService,
		},
		Tokens: app.tokenService,
	}

	hk, err := service.NewHousekeepingService(
		app.db,
		app.challengeService,
		app.logger,
		app.cfg.HousekeepingSchedule,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize housekeeping: %w", err)
	}
	app.housekeepingService = hk
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		BuildVersion,
		app.db,
		app.logger,
		app.cfg.HTTPRateLimits(),
	)

	// Wire services to router
	router.Dispatcher = app.dispatcher
	router.TokenService = app.tokenService
	router.Challenges = app.challengeService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
