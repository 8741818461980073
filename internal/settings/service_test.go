package settings_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/settings"
	"github.com/cserv-ai/cserv/internal/shared"
	_ "github.com/cserv-ai/cserv/testing"
)

var (
	root  = rbac.Principal{ID: 1, Role: rbac.RoleSuperAdmin, Active: true}
	admin = rbac.Principal{ID: 2, Role: rbac.RoleAdmin, Active: true, Permissions: rbac.DefaultPermissions(rbac.RoleAdmin)}
	op    = rbac.Principal{ID: 3, Role: rbac.RoleOperator, Active: true, Permissions: rbac.DefaultPermissions(rbac.RoleOperator)}
)

func TestModuleSwitchGatesAuthorization(t *testing.T) {
	ctx := context.Background()
	svc := settings.NewService(settings.NewMemoryRepository(), nil)
	gate := rbac.NewService(nil, svc)

	require.NoError(t, gate.Authorize(ctx, op, rbac.ModuleRoster, rbac.ActionView))

	_, err := svc.UpdateAccess(ctx, admin, settings.ModuleAccess{rbac.ModuleRoster: false})
	require.NoError(t, err)

	require.ErrorIs(t, gate.Authorize(ctx, op, rbac.ModuleRoster, rbac.ActionView), shared.ErrPermissionDenied)
	require.ErrorIs(t, gate.Authorize(ctx, admin, rbac.ModuleRoster, rbac.ActionView), shared.ErrPermissionDenied)
	require.NoError(t, gate.Authorize(ctx, root, rbac.ModuleRoster, rbac.ActionView))
	require.NoError(t, gate.Authorize(ctx, op, rbac.ModuleShortLeave, rbac.ActionApply))

	access, err := svc.Access(ctx)
	require.NoError(t, err)
	require.False(t, access[rbac.ModuleRoster])
	require.True(t, access[rbac.ModuleShortLeave])
}

func TestUpdateAccessValidation(t *testing.T) {
	ctx := context.Background()
	svc := settings.NewService(settings.NewMemoryRepository(), nil)

	_, err := svc.UpdateAccess(ctx, admin, settings.ModuleAccess{rbac.ModuleUsers: false})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.UpdateAccess(ctx, op, settings.ModuleAccess{rbac.ModuleRoster: false})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestUpdateSettingsMerges(t *testing.T) {
	ctx := context.Background()
	svc := settings.NewService(settings.NewMemoryRepository(), nil)
	org := "Support Desk"
	st, err := svc.UpdateSettings(ctx, admin, settings.Patch{OrgName: &org})
	require.NoError(t, err)
	require.Equal(t, settings.Settings{AppName: "C-Serv.AI", OrgName: "Support Desk"}, st)

	blank := " "
	_, err = svc.UpdateSettings(ctx, admin, settings.Patch{AppName: &blank})
	require.ErrorIs(t, err, shared.ErrValidation)
}
