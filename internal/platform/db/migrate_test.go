package db

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/cserv?sslmode=disable", migrateURL("postgres://u:p@db:5432/cserv?sslmode=disable"))
	require.Equal(t, "pgx5://db/cserv", migrateURL("postgresql://db/cserv"))
	require.Equal(t, "pgx5://db/cserv", migrateURL("pgx5://db/cserv"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrations, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	require.Len(t, downs, len(ups))
}
