package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type challengesRepo struct {
	q *queries
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.Challenge) error {
	_, err := r.q.db.ExecContext(ctx, `
INSERT INTO mfa_challenges (token_hash, username, client_id, scopes, issued_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		c.TokenHash, c.Username, c.ClientID, joinFields(c.Scopes),
		toMillis(c.IssuedAt), toMillis(c.ExpiresAt),
	)
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return store.ErrAlreadyExists
	}
	return err
}

// ConsumeChallenge deletes and returns the row in a single statement, so
// two racing callers cannot both see it.
func (r *challengesRepo) ConsumeChallenge(ctx context.Context, hash string, now time.Time) (domain.Challenge, error) {
	return scanChallenge(hash, r.q.db.QueryRowContext(ctx, `
DELETE FROM mfa_challenges
WHERE token_hash = ? AND expires_at > ?
RETURNING username, client_id, scopes, issued_at, expires_at`,
		hash, toMillis(now)))
}

func (r *challengesRepo) GetChallenge(ctx context.Context, hash string, now time.Time) (domain.Challenge, error) {
	return scanChallenge(hash, r.q.db.QueryRowContext(ctx, `
SELECT username, client_id, scopes, issued_at, expires_at
FROM mfa_challenges
WHERE token_hash = ? AND expires_at > ?`,
		hash, toMillis(now)))
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, hash string) error {
	_, err := r.q.db.ExecContext(ctx, `DELETE FROM mfa_challenges WHERE token_hash = ?`, hash)
	return err
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.db.ExecContext(ctx,
		`DELETE FROM mfa_challenges WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanChallenge(hash string, row *sql.Row) (domain.Challenge, error) {
	var (
		c                   domain.Challenge
		scopes              string
		issuedAt, expiresAt int64
	)
	if err := row.Scan(&c.Username, &c.ClientID, &scopes, &issuedAt, &expiresAt); err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}

	c.TokenHash = hash
	c.Scopes = splitFields(scopes)
	c.Authorities = jwtx.PreAuthOnly()
	c.IssuedAt = fromMillis(issuedAt)
	c.ExpiresAt = fromMillis(expiresAt)
	return c, nil
}
