package settings

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cserv-ai/cserv/internal/platform/httpx"
	"github.com/cserv-ai/cserv/internal/rbac"
)

// Handler serves the admin settings endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(service *Service, validate *validator.Validate, mw rbac.Middleware) *Handler {
	return &Handler{service: service, validate: validate, rbac: mw}
}

// MountRoutes registers /access and /settings under the admin router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ModuleSettings, rbac.ActionView))
		r.Get("/access", h.getAccess)
		r.Get("/settings", h.getSettings)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ModuleSettings, rbac.ActionEdit))
		r.Put("/access", h.putAccess)
		r.Put("/settings", h.putSettings)
	})
}

func (h *Handler) getAccess(w http.ResponseWriter, r *http.Request) {
	access, err := h.service.Access(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, access)
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Settings(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) putAccess(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	var raw map[string]bool
	if err := httpx.DecodeJSON(r, nil, &raw); err != nil {
		httpx.RespondError(w, err)
		return
	}
	access := make(ModuleAccess, len(raw))
	for k, v := range raw {
		access[rbac.Module(k)] = v
	}
	out, err := h.service.UpdateAccess(r.Context(), actor, access)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"access": out})
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	var p Patch
	if err := httpx.DecodeJSON(r, h.validate, &p); err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.UpdateSettings(r.Context(), actor, p)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"settings": st})
}
