package settings

import "github.com/cserv-ai/cserv/internal/rbac"

// Settings are tenant-wide display settings.
type Settings struct {
	AppName string `json:"appName"`
	OrgName string `json:"orgName"`
}

// Patch carries optional settings changes.
type Patch struct {
	AppName *string `json:"appName" validate:"omitempty,min=1,max=64"`
	OrgName *string `json:"orgName" validate:"omitempty,min=1,max=128"`
}

// ModuleAccess switches modules on or off for non-superadmin principals.
// Modules missing from the map are enabled.
type ModuleAccess map[rbac.Module]bool

// Defaults match a fresh installation.
var Defaults = Settings{AppName: "C-Serv.AI", OrgName: "Customer Service Team"}

// toggleable lists modules an administrator may switch off.
var toggleable = map[rbac.Module]struct{}{
	rbac.ModuleShortLeave: {},
	rbac.ModuleRoster:     {},
	rbac.ModuleAgents:     {},
}
