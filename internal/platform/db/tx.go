package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cserv-ai/cserv/internal/shared"
)

// WithTx executes fn within a ReadCommitted transaction. Every statement
// takes a fresh snapshot, so reads issued after an advisory lock or a
// SELECT ... FOR UPDATE see whatever the previous holder committed. Domain
// errors returned by fn pass through untouched; driver failures come back as
// shared.StorageError so callers can tell retryable failures apart.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return shared.Storage("begin tx", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return shared.Storage("tx", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return shared.Storage("commit tx", err)
	}

	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// LockKey takes a transaction-scoped advisory lock.
func LockKey(ctx context.Context, tx pgx.Tx, key int64) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key)
	return err
}
