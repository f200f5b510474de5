package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
)

// ErrMFASecretRequired rejects a user whose MFA is enabled without a secret.
var ErrMFASecretRequired = errors.New("sqlite: mfa enabled without a secret")

type usersRepo struct {
	q *queries
}

const userColumns = `id, username, password_hash, authorities, mfa_enabled_at, mfa_secret, created_at, updated_at`

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u                    domain.User
		authorities          string
		mfaEnabled           sql.NullInt64
		mfaSecret            sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &authorities,
		&mfaEnabled, &mfaSecret, &createdAt, &updatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.Authorities = splitFields(authorities)
	u.MFAEnabled = nullMillisPtr(mfaEnabled)
	u.MFASecret = stringPtr(mfaSecret)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return scanUser(r.q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (r *usersRepo) UpsertUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}

	// A secret without the enabled flag is an unfinished enrolment.
	mfaEnabled, mfaSecret := u.MFAEnabled, u.MFASecret
	switch {
	case !u.HasMFA():
		mfaSecret = nil
	case u.TOTPSecret() == "":
		return ErrMFASecretRequired
	}

	_, err := r.q.db.ExecContext(ctx, `
INSERT INTO users (`+userColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (username) DO UPDATE SET
    password_hash  = excluded.password_hash,
    authorities    = excluded.authorities,
    mfa_enabled_at = excluded.mfa_enabled_at,
    mfa_secret     = excluded.mfa_secret,
    updated_at     = excluded.updated_at`,
		u.ID, u.Username, u.PasswordHash, joinFields(u.Authorities),
		nullMillis(mfaEnabled), nullStringPtr(mfaSecret),
		toMillis(u.CreatedAt), toMillis(now),
	)
	return err
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var n int64
	if err := r.q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}
