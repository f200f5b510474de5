package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
)

type clientsRepo struct {
	q *queries
}

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	var (
		c                    domain.Client
		secret               sql.NullString
		scopes               string
		createdAt, updatedAt int64
	)
	err := r.q.db.QueryRowContext(ctx, `
SELECT id, name, secret_hash, scopes, created_at, updated_at
FROM clients WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &secret, &scopes, &createdAt, &updatedAt)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}

	c.SecretHash = secret.String
	c.Scopes = splitFields(scopes)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

func (r *clientsRepo) UpsertClient(ctx context.Context, c domain.Client) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}

	_, err := r.q.db.ExecContext(ctx, `
INSERT INTO clients (id, name, secret_hash, scopes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name        = excluded.name,
    secret_hash = excluded.secret_hash,
    scopes      = excluded.scopes,
    updated_at  = excluded.updated_at`,
		c.ID, c.Name, nullString(c.SecretHash), joinFields(c.Scopes),
		toMillis(c.CreatedAt), toMillis(now),
	)
	return err
}
