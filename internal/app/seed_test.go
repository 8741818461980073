package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/users"
)

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStores(time.Now)

	require.NoError(t, Seed(ctx, stores, bcrypt.MinCost, nil))
	require.NoError(t, Seed(ctx, stores, bcrypt.MinCost, nil))

	list, err := stores.Users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	admin, err := stores.Users.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleSuperAdmin, admin.Role)
	require.True(t, admin.Protected)
	require.NoError(t, users.CheckPassword(admin, "Admin@123"))

	op, err := stores.Users.FindByUsername(ctx, "operator")
	require.NoError(t, err)
	require.NoError(t, users.CheckPassword(op, "Op@123"))
	require.True(t, op.Permissions.Has(rbac.ModuleRoster, rbac.ActionCreate))

	directory, err := stores.Agents.List(ctx)
	require.NoError(t, err)
	require.Len(t, directory, 17)
	require.Equal(t, "EP0200", directory[0].EmpCode)
	require.Equal(t, "Gurgaon-US", directory[16].Location)
}
