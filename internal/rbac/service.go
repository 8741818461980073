package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/cserv-ai/cserv/internal/shared"
)

// PrincipalStore loads principals by id.
type PrincipalStore interface {
	FindPrincipal(ctx context.Context, id int64) (Principal, error)
}

// ModuleGate reports whether a module is switched on for the tenant.
type ModuleGate interface {
	ModuleEnabled(ctx context.Context, module Module) (bool, error)
}

// Service resolves principals and evaluates authorization.
type Service struct {
	store PrincipalStore
	gate  ModuleGate
}

// NewService constructs a Service. gate may be nil, in which case every
// module is treated as enabled.
func NewService(store PrincipalStore, gate ModuleGate) *Service {
	return &Service{store: store, gate: gate}
}

// Principal loads an active principal. Inactive or missing principals are
// reported as unauthenticated.
func (s *Service) Principal(ctx context.Context, id int64) (Principal, error) {
	p, err := s.store.FindPrincipal(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Principal{}, shared.ErrUnauthenticated
		}
		return Principal{}, err
	}
	if !p.Active {
		return Principal{}, shared.ErrUnauthenticated
	}
	return p, nil
}

// Authorize combines the module switch with Allowed. A superadmin bypasses the
// module switch as well.
func (s *Service) Authorize(ctx context.Context, p Principal, module Module, action Action) error {
	if err := s.ModuleAccess(ctx, p, module); err != nil {
		return err
	}
	if !Allowed(p, module, action) {
		return shared.Denied("%s.%s not granted", module, action)
	}
	return nil
}

// ModuleAccess reports ErrPermissionDenied when the module is switched off
// and p is not a superadmin.
func (s *Service) ModuleAccess(ctx context.Context, p Principal, module Module) error {
	if p.Role == RoleSuperAdmin || s.gate == nil {
		return nil
	}
	enabled, err := s.gate.ModuleEnabled(ctx, module)
	if err != nil {
		return err
	}
	if !enabled {
		return shared.Denied("module %s is disabled", module)
	}
	return nil
}

// EffectivePermissions returns the capability names a principal can exercise.
func (s *Service) EffectivePermissions(ctx context.Context, id int64) ([]string, error) {
	p, err := s.Principal(ctx, id)
	if err != nil {
		return nil, err
	}
	caps := p.Permissions.Capabilities()
	if p.Role == RoleSuperAdmin {
		caps = AllCapabilities()
	}
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, c.String())
	}
	return names, nil
}

// Require returns ErrPermissionDenied unless Allowed holds. It is the
// service-level counterpart of the HTTP middleware.
func Require(p Principal, module Module, action Action) error {
	if !Allowed(p, module, action) {
		return fmt.Errorf("%w: %s.%s not granted", shared.ErrPermissionDenied, module, action)
	}
	return nil
}
