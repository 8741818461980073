package rbac_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cserv-ai/cserv/internal/rbac"
	_ "github.com/cserv-ai/cserv/testing"
)

func TestSuperadminAllowedEverything(t *testing.T) {
	maps := []rbac.PermissionSet{
		{},
		rbac.MustPermissionSet(rbac.Capability{Module: rbac.ModuleAgents, Action: rbac.ActionView}),
		rbac.DefaultPermissions(rbac.RoleOperator),
	}
	for _, perms := range maps {
		p := rbac.Principal{ID: 1, Role: rbac.RoleSuperAdmin, Permissions: perms, Active: true}
		for _, c := range rbac.AllCapabilities() {
			require.True(t, rbac.Allowed(p, c.Module, c.Action), c.String())
		}
	}
}

func TestAllowedHasNoInheritance(t *testing.T) {
	p := rbac.Principal{
		ID:          7,
		Role:        rbac.RoleOperator,
		Permissions: rbac.MustPermissionSet(rbac.Capability{Module: rbac.ModuleShortLeave, Action: rbac.ActionView}),
	}
	require.True(t, rbac.Allowed(p, rbac.ModuleShortLeave, rbac.ActionView))
	require.False(t, rbac.Allowed(p, rbac.ModuleShortLeave, rbac.ActionApply))
	require.False(t, rbac.Allowed(p, rbac.ModuleRoster, rbac.ActionView))
}

func TestAdminNeedsExplicitCapability(t *testing.T) {
	p := rbac.Principal{ID: 2, Role: rbac.RoleAdmin}
	require.False(t, rbac.Allowed(p, rbac.ModuleShortLeave, rbac.ActionApprove))
	require.True(t, rbac.IsAdministrative(p))
}

func TestOperatorIndividuallyGrantedApprove(t *testing.T) {
	perms := rbac.DefaultPermissions(rbac.RoleOperator)
	require.NoError(t, perms.Grant(rbac.Capability{Module: rbac.ModuleShortLeave, Action: rbac.ActionApprove}))
	p := rbac.Principal{ID: 3, Role: rbac.RoleOperator, Permissions: perms}
	require.True(t, rbac.Allowed(p, rbac.ModuleShortLeave, rbac.ActionApprove))
	require.False(t, rbac.IsAdministrative(p))
}

func TestGrantRejectsUnknownCapability(t *testing.T) {
	var perms rbac.PermissionSet
	err := perms.Grant(rbac.Capability{Module: rbac.ModuleRoster, Action: rbac.ActionApply})
	require.Error(t, err)
	require.Zero(t, perms.Len())
}

func TestPermissionSetJSON(t *testing.T) {
	var perms rbac.PermissionSet
	require.NoError(t, json.Unmarshal([]byte(`{"shortleave":["apply","view"],"roster":["view"]}`), &perms))
	require.True(t, perms.Has(rbac.ModuleShortLeave, rbac.ActionApply))
	require.True(t, perms.Has(rbac.ModuleRoster, rbac.ActionView))
	require.Equal(t, 3, perms.Len())

	data, err := json.Marshal(perms)
	require.NoError(t, err)
	require.JSONEq(t, `{"roster":["view"],"shortleave":["apply","view"]}`, string(data))
}

func TestPermissionSetAcceptsBooleanMap(t *testing.T) {
	var perms rbac.PermissionSet
	require.NoError(t, json.Unmarshal([]byte(`{"shortleave":{"apply":true,"approve":false}}`), &perms))
	require.True(t, perms.Has(rbac.ModuleShortLeave, rbac.ActionApply))
	require.False(t, perms.Has(rbac.ModuleShortLeave, rbac.ActionApprove))
}

func TestPermissionSetRejectsUnknownJSON(t *testing.T) {
	var perms rbac.PermissionSet
	require.Error(t, json.Unmarshal([]byte(`{"payroll":["view"]}`), &perms))
	require.Error(t, json.Unmarshal([]byte(`{"shortleave":["launch"]}`), &perms))
}

func TestParseRole(t *testing.T) {
	role, err := rbac.ParseRole("admin")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleAdmin, role)
	_, err = rbac.ParseRole("owner")
	require.Error(t, err)
}
