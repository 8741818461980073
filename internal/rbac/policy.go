package rbac

// Allowed decides whether the principal may perform action on module.
// A superadmin holds every capability regardless of its stored map.
func Allowed(p Principal, module Module, action Action) bool {
	if p.Role == RoleSuperAdmin {
		return true
	}
	return p.Permissions.Has(module, action)
}

// IsAdministrative reports whether the principal acts with administrative
// standing (admin or superadmin).
func IsAdministrative(p Principal) bool {
	return p.Role.Administrative()
}
