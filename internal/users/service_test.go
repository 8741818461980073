package users_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cserv-ai/cserv/internal/notify"
	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
	"github.com/cserv-ai/cserv/internal/users"
	_ "github.com/cserv-ai/cserv/testing"
)

type recordingNotifier struct {
	events []notify.Event
}

func (r *recordingNotifier) Dispatch(_ context.Context, evt notify.Event) []notify.Notification {
	r.events = append(r.events, evt)
	return nil
}

type fixture struct {
	svc      *users.Service
	repo     *users.MemoryRepository
	notifier *recordingNotifier
	root     rbac.Principal
	admin    rbac.Principal
	operator rbac.Principal
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := users.NewMemoryRepository()
	notifier := &recordingNotifier{}
	svc := users.NewService(repo, notifier, nil, users.ServiceConfig{HashCost: bcrypt.MinCost})
	root := repo.Seed(users.User{Username: "admin", Name: "Administrator", Role: rbac.RoleSuperAdmin, Active: true, Protected: true})
	admin := repo.Seed(users.User{Username: "lead", Name: "Team Lead", Role: rbac.RoleAdmin, Permissions: rbac.DefaultPermissions(rbac.RoleAdmin), Active: true})
	op := repo.Seed(users.User{Username: "op", Name: "Operator", Role: rbac.RoleOperator, Permissions: rbac.DefaultPermissions(rbac.RoleOperator), Active: true})
	return fixture{svc: svc, repo: repo, notifier: notifier, root: root.Principal(), admin: admin.Principal(), operator: op.Principal()}
}

func TestCreateAppliesRoleDefaults(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.Create(context.Background(), f.admin, users.CreateInput{
		Username: "naveen",
		Password: "secret1",
		Name:     "naveen  kumar",
	})
	require.NoError(t, err)
	require.Equal(t, rbac.RoleOperator, u.Role)
	require.Equal(t, "Naveen Kumar", u.Name)
	require.True(t, u.Permissions.Has(rbac.ModuleShortLeave, rbac.ActionApply))
	require.False(t, u.Permissions.Has(rbac.ModuleShortLeave, rbac.ActionApprove))
	require.NoError(t, users.CheckPassword(u, "secret1"))
	require.ErrorIs(t, users.CheckPassword(u, "wrong"), shared.ErrInvalidCredentials)
}

func TestCreateRejectsDuplicateUsername(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), f.admin, users.CreateInput{Username: "OP", Password: "secret1", Name: "Dup"})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestOnlySuperadminCreatesSuperadmin(t *testing.T) {
	f := newFixture(t)
	in := users.CreateInput{Username: "boss", Password: "secret1", Name: "Boss", Role: rbac.RoleSuperAdmin}
	_, err := f.svc.Create(context.Background(), f.admin, in)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	_, err = f.svc.Create(context.Background(), f.root, in)
	require.NoError(t, err)
}

func TestOperatorCannotAdministerUsers(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), f.operator)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
	_, err = f.svc.Create(context.Background(), f.operator, users.CreateInput{Username: "x", Password: "secret1", Name: "X"})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestDeactivateGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.Deactivate(ctx, f.root, f.root.ID), shared.ErrValidation)
	require.ErrorIs(t, f.svc.Deactivate(ctx, f.admin, f.admin.ID), shared.ErrValidation)
	require.ErrorIs(t, f.svc.Deactivate(ctx, f.admin, f.root.ID), shared.ErrPermissionDenied)

	require.NoError(t, f.svc.Deactivate(ctx, f.admin, f.operator.ID))
	u, err := f.repo.Get(ctx, f.operator.ID)
	require.NoError(t, err)
	require.False(t, u.Active)

	admins, err := f.svc.ListPrincipals(ctx, rbac.RoleOperator)
	require.NoError(t, err)
	require.Empty(t, admins)
}

func TestUpdatePermissions(t *testing.T) {
	f := newFixture(t)
	perms := rbac.DefaultPermissions(rbac.RoleOperator)
	require.NoError(t, perms.Grant(rbac.Capability{Module: rbac.ModuleShortLeave, Action: rbac.ActionApprove}))

	u, err := f.svc.Update(context.Background(), f.admin, f.operator.ID, users.UpdateInput{Permissions: &perms})
	require.NoError(t, err)
	require.True(t, u.Principal().Permissions.Has(rbac.ModuleShortLeave, rbac.ActionApprove))

	p, err := f.svc.FindPrincipal(context.Background(), f.operator.ID)
	require.NoError(t, err)
	require.True(t, rbac.Allowed(p, rbac.ModuleShortLeave, rbac.ActionApprove))
}

func TestUpdateRejectsShortPassword(t *testing.T) {
	f := newFixture(t)
	short := "abc"
	_, err := f.svc.Update(context.Background(), f.admin, f.operator.ID, users.UpdateInput{Password: &short})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRegisterCreatesOperatorWithoutCapabilities(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.Register(context.Background(), users.RegisterInput{Username: "new", Password: "secret1", Name: "new agent"})
	require.NoError(t, err)
	require.Equal(t, rbac.RoleOperator, u.Role)
	require.Zero(t, u.Permissions.Len())

	require.Len(t, f.notifier.events, 1)
	evt := f.notifier.events[0]
	require.Equal(t, notify.CategoryUserRegistered, evt.Category)
	require.Equal(t, u.ID, evt.Ref.ID)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), users.RegisterInput{Username: "new", Password: "secret1"})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, f.notifier.events)
}
