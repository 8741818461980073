package rbac

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cserv-ai/cserv/internal/shared"
)

// Role is the coarse identity class of a principal.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleOperator   Role = "operator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleOperator:
		return true
	}
	return false
}

// Administrative reports whether the role carries administrative standing.
func (r Role) Administrative() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// ParseRole converts raw input into a Role.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("rbac: unknown role %q", raw)
	}
	return r, nil
}

// Module names a permission scope.
type Module string

const (
	ModuleShortLeave Module = "shortleave"
	ModuleRoster     Module = "roster"
	ModuleAgents     Module = "agents"
	ModuleUsers      Module = "users"
	ModuleSettings   Module = "settings"
)

// Action names a single operation within a module.
type Action string

const (
	ActionView      Action = "view"
	ActionApply     Action = "apply"
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionCancel    Action = "cancel"
	ActionDashboard Action = "dashboard"
	ActionCreate    Action = "create"
	ActionEdit      Action = "edit"
	ActionDelete    Action = "delete"
)

// Capability is a granted (module, action) pair.
type Capability struct {
	Module Module
	Action Action
}

func (c Capability) String() string {
	return string(c.Module) + "." + string(c.Action)
}

// PermissionSet is the flat capability set of a principal. Each capability
// is independent; holding one never implies another.
type PermissionSet struct {
	grants map[Module]map[Action]struct{}
}

// NewPermissionSet builds a set from capabilities, rejecting pairs that are
// not part of the catalog.
func NewPermissionSet(caps ...Capability) (PermissionSet, error) {
	var set PermissionSet
	for _, c := range caps {
		if err := set.Grant(c); err != nil {
			return PermissionSet{}, err
		}
	}
	return set, nil
}

// MustPermissionSet is NewPermissionSet for static tables.
func MustPermissionSet(caps ...Capability) PermissionSet {
	set, err := NewPermissionSet(caps...)
	if err != nil {
		panic(err)
	}
	return set
}

// Grant adds a capability.
func (s *PermissionSet) Grant(c Capability) error {
	if !Known(c) {
		return fmt.Errorf("%w: unknown capability %s", shared.ErrValidation, c)
	}
	if s.grants == nil {
		s.grants = make(map[Module]map[Action]struct{})
	}
	actions, ok := s.grants[c.Module]
	if !ok {
		actions = make(map[Action]struct{})
		s.grants[c.Module] = actions
	}
	actions[c.Action] = struct{}{}
	return nil
}

// Revoke removes a capability if present.
func (s *PermissionSet) Revoke(c Capability) {
	if s.grants == nil {
		return
	}
	delete(s.grants[c.Module], c.Action)
	if len(s.grants[c.Module]) == 0 {
		delete(s.grants, c.Module)
	}
}

// Has reports whether the set holds the capability.
func (s PermissionSet) Has(module Module, action Action) bool {
	if s.grants == nil {
		return false
	}
	_, ok := s.grants[module][action]
	return ok
}

// Capabilities lists the granted pairs in a stable order.
func (s PermissionSet) Capabilities() []Capability {
	caps := make([]Capability, 0)
	for module, actions := range s.grants {
		for action := range actions {
			caps = append(caps, Capability{Module: module, Action: action})
		}
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i].String() < caps[j].String() })
	return caps
}

// Len returns the number of granted capabilities.
func (s PermissionSet) Len() int {
	n := 0
	for _, actions := range s.grants {
		n += len(actions)
	}
	return n
}

// MarshalJSON renders the set as module -> sorted action list.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(s.grants))
	for _, c := range s.Capabilities() {
		out[string(c.Module)] = append(out[string(c.Module)], string(c.Action))
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts either module -> [actions] or the legacy
// module -> {action: bool} shape. Unknown pairs are rejected.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var lists map[string][]string
	if err := json.Unmarshal(data, &lists); err == nil {
		return s.fill(lists)
	}
	var flags map[string]map[string]bool
	if err := json.Unmarshal(data, &flags); err != nil {
		return fmt.Errorf("rbac: decode permissions: %w", err)
	}
	lists = make(map[string][]string, len(flags))
	for module, actions := range flags {
		for action, granted := range actions {
			if granted {
				lists[module] = append(lists[module], action)
			}
		}
	}
	return s.fill(lists)
}

func (s *PermissionSet) fill(lists map[string][]string) error {
	next := PermissionSet{}
	for module, actions := range lists {
		for _, action := range actions {
			c := Capability{Module: Module(strings.ToLower(module)), Action: Action(strings.ToLower(action))}
			if err := next.Grant(c); err != nil {
				return err
			}
		}
	}
	*s = next
	return nil
}

// Principal describes the authenticated actor.
type Principal struct {
	ID          int64
	Username    string
	Name        string
	Email       string
	Role        Role
	Permissions PermissionSet
	Active      bool
	CreatedAt   time.Time
}

// DisplayName returns the name recorded on transitions.
func (p Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Username
}
