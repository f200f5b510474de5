package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface for the relational driver. Sub
// repositories are methods so a Tx can hand out the same repos bound to the
// transaction.
type Store interface {
	Users() Users
	Clients() Clients
	RefreshTokens() RefreshTokens
	Challenges() Challenges
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller must Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing if fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is the lookup behind both grant steps.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// UpsertUser inserts u, or replaces the row with the same username
	// keeping its id.
	UpsertUser(ctx context.Context, u domain.User) error

	IsEmpty(ctx context.Context) (bool, error)
}

type Clients interface {
	GetClientByID(ctx context.Context, id string) (domain.Client, error)
	UpsertClient(ctx context.Context, c domain.Client) error
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the record whatever its state; callers
	// check Usable.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// ClaimRefreshToken revokes the token if it is still usable at now and
	// returns it. Of concurrent claims for one hash at most one succeeds;
	// the rest see ErrNotFound.
	ClaimRefreshToken(ctx context.Context, hash string, now time.Time) (domain.RefreshToken, error)

	// RevokeRefreshToken is idempotent and reports ErrNotFound for unknown
	// hashes.
	RevokeRefreshToken(ctx context.Context, hash string) error

	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// Challenges persists pending MFA challenges keyed by token fingerprint.
// Every method treats a record whose ExpiresAt is not after now as absent.
type Challenges interface {
	CreateChallenge(ctx context.Context, c domain.Challenge) error

	// ConsumeChallenge removes and returns the record in one atomic step.
	// Of any number of concurrent calls for one hash at most one succeeds;
	// the rest see ErrNotFound.
	ConsumeChallenge(ctx context.Context, hash string, now time.Time) (domain.Challenge, error)

	// GetChallenge reads without consuming.
	GetChallenge(ctx context.Context, hash string, now time.Time) (domain.Challenge, error)

	// DeleteChallenge is idempotent.
	DeleteChallenge(ctx context.Context, hash string) error

	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

// SigningKeys holds the shared signing key set. Keys are written once, by
// whichever instance starts first, and never rotated.
type SigningKeys interface {
	ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// InitSigningKeys stores keys only when none exist and reports whether it
	// did. Of concurrent callers exactly one wins.
	InitSigningKeys(ctx context.Context, keys []domain.SigningKey) (bool, error)
}

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}
