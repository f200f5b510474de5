package sqlite

import (
	"context"
	"errors"
	"strings"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
)

type signingKeysRepo struct {
	q *queries
}

func (r *signingKeysRepo) ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error) {
	rows, err := r.q.db.QueryContext(ctx, `
SELECT kid, algorithm, private_key_encrypted, created_at
FROM signing_keys ORDER BY created_at, kid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.SigningKey
	for rows.Next() {
		var (
			k         domain.SigningKey
			createdAt int64
		)
		if err := rows.Scan(&k.Kid, &k.Algorithm, &k.PrivateKeyEncrypted, &createdAt); err != nil {
			return nil, err
		}
		k.CreatedAt = fromMillis(createdAt)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// InitSigningKeys inserts the whole set in one statement guarded by
// NOT EXISTS, so a second writer inserts nothing.
func (r *signingKeysRepo) InitSigningKeys(ctx context.Context, keys []domain.SigningKey) (bool, error) {
	if len(keys) == 0 {
		return false, errors.New("sqlite: no signing keys to store")
	}

	rows := make([]string, 0, len(keys))
	args := make([]any, 0, 4*len(keys))
	for _, k := range keys {
		rows = append(rows, "(?, ?, ?, ?)")
		args = append(args, k.Kid, k.Algorithm, k.PrivateKeyEncrypted, toMillis(k.CreatedAt))
	}

	res, err := r.q.db.ExecContext(ctx, `
INSERT INTO signing_keys (kid, algorithm, private_key_encrypted, created_at)
SELECT column1, column2, column3, column4 FROM (VALUES `+strings.Join(rows, ", ")+`)
WHERE NOT EXISTS (SELECT 1 FROM signing_keys)`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
