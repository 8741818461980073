package agents_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cserv-ai/cserv/internal/agents"
	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
	_ "github.com/cserv-ai/cserv/testing"
)

func TestReplaceAgents(t *testing.T) {
	ctx := context.Background()
	svc := agents.NewService(agents.NewMemoryRepository(agents.Agent{EmpCode: "EP0200", Name: "Shrikant Nayak"}), nil)
	admin := rbac.Principal{ID: 1, Role: rbac.RoleAdmin, Permissions: rbac.DefaultPermissions(rbac.RoleAdmin)}
	op := rbac.Principal{ID: 2, Role: rbac.RoleOperator, Permissions: rbac.DefaultPermissions(rbac.RoleOperator)}

	next := []agents.Agent{
		{EmpCode: " ep0269", Name: "Ritu Singh", Level: 0, Department: "Customer Service", Location: "Gurgaon-US"},
		{EmpCode: "EP0563", Name: "Himanshi Khowal", Level: 2},
	}
	require.ErrorIs(t, svc.Replace(ctx, op, next), shared.ErrPermissionDenied)
	require.NoError(t, svc.Replace(ctx, admin, next))

	list, err := svc.List(ctx, op)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "EP0269", list[0].EmpCode)

	blind := op
	blind.Permissions = rbac.PermissionSet{}
	_, err = svc.List(ctx, blind)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	dup := append(next, agents.Agent{EmpCode: "EP0269", Name: "Copy"})
	require.ErrorIs(t, svc.Replace(ctx, admin, dup), shared.ErrValidation)
	require.ErrorIs(t, svc.Replace(ctx, admin, []agents.Agent{{EmpCode: "EP1"}}), shared.ErrValidation)
}
