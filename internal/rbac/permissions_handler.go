package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cserv-ai/cserv/internal/platform/httpx"
)

// PermissionsHandler exposes the capability catalog to administrators.
type PermissionsHandler struct {
	rbac Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(ModuleUsers, ActionView))
		r.Get("/", h.listPermissions)
	})
}

type roleDefaults struct {
	Role        Role          `json:"role"`
	Permissions PermissionSet `json:"permissions"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	roles := []Role{RoleAdmin, RoleOperator}
	defaults := make([]roleDefaults, len(roles))
	for i, role := range roles {
		defaults[i] = roleDefaults{Role: role, Permissions: DefaultPermissions(role)}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"modules":  Catalog(),
		"defaults": defaults,
	})
}
