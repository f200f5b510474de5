package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
)

type refreshTokensRepo struct {
	q *queries
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	now := time.Now().UTC()
	_, err := r.q.db.ExecContext(ctx, `
INSERT INTO refresh_tokens
    (id, user_id, client_id, token_hash, session_id, scopes, amr, expires_at, revoked, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		t.ID, t.UserID, t.ClientID, t.TokenHash, t.SessionID,
		joinFields(t.Scopes), joinFields(t.AMR),
		toMillis(t.ExpiresAt), toMillis(now), toMillis(now),
	)
	return err
}

const refreshTokenColumns = `id, user_id, client_id, token_hash, session_id, scopes, amr, expires_at, revoked, created_at, updated_at`

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	return scanRefreshToken(r.q.db.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, hash))
}

// ClaimRefreshToken revokes a usable token and returns it in one statement.
// Run as the first statement of a transaction it also takes the write lock,
// so a second caller waits and then finds the token already revoked.
func (r *refreshTokensRepo) ClaimRefreshToken(ctx context.Context, hash string, now time.Time) (domain.RefreshToken, error) {
	return scanRefreshToken(r.q.db.QueryRowContext(ctx, `
UPDATE refresh_tokens SET revoked = 1, updated_at = ?
WHERE token_hash = ? AND revoked = 0 AND expires_at > ?
RETURNING `+refreshTokenColumns,
		toMillis(time.Now().UTC()), hash, toMillis(now)))
}

func scanRefreshToken(row *sql.Row) (domain.RefreshToken, error) {
	var (
		t                               domain.RefreshToken
		scopes, amr                     string
		expiresAt, createdAt, updatedAt int64
	)
	err := row.Scan(&t.ID, &t.UserID, &t.ClientID, &t.TokenHash, &t.SessionID,
		&scopes, &amr, &expiresAt, &t.Revoked, &createdAt, &updatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}

	t.Scopes = splitFields(scopes)
	t.AMR = splitFields(amr)
	t.ExpiresAt = fromMillis(expiresAt)
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	res, err := r.q.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE token_hash = ?`,
		toMillis(time.Now().UTC()), hash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
