// Package dbtest connects tests to a disposable Postgres database named by
// CSERV_TEST_PG_DSN. Tests that need it are skipped when the variable is unset.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/cserv-ai/cserv/internal/platform/db"
)

// DSNEnv names the variable holding the test database DSN.
const DSNEnv = "CSERV_TEST_PG_DSN"

// Pool migrates the test database, empties every table and returns a pool
// closed at the end of the test.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", DSNEnv)
	}
	ctx := context.Background()
	_, err := db.Migrate(ctx, dsn)
	require.NoError(t, err)
	pool, err := db.New(ctx, dsn, db.Options{MaxConns: 16})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = pool.Exec(ctx, `TRUNCATE leave_requests, rosters, notifications, approvals, audit_logs,
idempotency_keys, user_sessions, agents, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

// User inserts a bare account and returns its id.
func User(t *testing.T, pool *pgxpool.Pool, username, role string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `INSERT INTO users (username, name, role, password_hash)
VALUES ($1, $1, $2, 'x') RETURNING id`, username, role).Scan(&id)
	require.NoError(t, err)
	return id
}
