package rbac

var catalog = map[Module][]Action{
	ModuleShortLeave: {ActionView, ActionApply, ActionApprove, ActionReject, ActionCancel, ActionDashboard},
	ModuleRoster:     {ActionView, ActionCreate, ActionApprove, ActionDelete},
	ModuleAgents:     {ActionView, ActionEdit},
	ModuleUsers:      {ActionView, ActionEdit},
	ModuleSettings:   {ActionView, ActionEdit},
}

var moduleOrder = []Module{ModuleShortLeave, ModuleRoster, ModuleAgents, ModuleUsers, ModuleSettings}

// Known reports whether the capability belongs to the catalog.
func Known(c Capability) bool {
	for _, a := range catalog[c.Module] {
		if a == c.Action {
			return true
		}
	}
	return false
}

// CatalogEntry describes one module and its actions.
type CatalogEntry struct {
	Module  Module   `json:"module"`
	Actions []Action `json:"actions"`
}

// Catalog lists every module with its actions.
func Catalog() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(moduleOrder))
	for _, m := range moduleOrder {
		entries = append(entries, CatalogEntry{Module: m, Actions: append([]Action(nil), catalog[m]...)})
	}
	return entries
}

// AllCapabilities returns every catalog capability.
func AllCapabilities() []Capability {
	var caps []Capability
	for _, m := range moduleOrder {
		for _, a := range catalog[m] {
			caps = append(caps, Capability{Module: m, Action: a})
		}
	}
	return caps
}

// DefaultPermissions returns the capabilities granted to a new principal of
// the given role when no explicit map is supplied.
func DefaultPermissions(role Role) PermissionSet {
	switch role {
	case RoleSuperAdmin, RoleAdmin:
		return MustPermissionSet(AllCapabilities()...)
	case RoleOperator:
		return MustPermissionSet(
			Capability{ModuleShortLeave, ActionView},
			Capability{ModuleShortLeave, ActionApply},
			Capability{ModuleShortLeave, ActionCancel},
			Capability{ModuleRoster, ActionView},
			Capability{ModuleRoster, ActionCreate},
			Capability{ModuleAgents, ActionView},
		)
	}
	return PermissionSet{}
}

// IsModule reports whether m names a catalog module.
func IsModule(m Module) bool {
	_, ok := catalog[m]
	return ok
}
