package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/twostep/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
	q  *queries
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx, q: &queries{db: tx}}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// The outer Store owns the connection.
func (t *txStore) Close() error               { return nil }
func (t *txStore) Ping(context.Context) error { return nil }
func (t *txStore) ApplyMigrations() error     { return nil }

// Nested transactions are not supported.
func (t *txStore) Tx(context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }

func (t *txStore) WithTx(context.Context, func(store.Tx) error) error { return sql.ErrTxDone }

func (t *txStore) Users() store.Users                 { return &usersRepo{q: t.q} }
func (t *txStore) Clients() store.Clients             { return &clientsRepo{q: t.q} }
func (t *txStore) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{q: t.q} }
func (t *txStore) Challenges() store.Challenges       { return &challengesRepo{q: t.q} }
func (t *txStore) SigningKeys() store.SigningKeys     { return &signingKeysRepo{q: t.q} }
