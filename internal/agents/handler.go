package agents

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cserv-ai/cserv/internal/platform/httpx"
	"github.com/cserv-ai/cserv/internal/rbac"
)

// Handler serves the agent directory.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, rbac: mw}
}

// MountRoutes registers agent routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.ModuleAgents, rbac.ActionView)).Get("/", h.list)
	r.With(h.rbac.Require(rbac.ModuleAgents, rbac.ActionEdit)).Put("/", h.replace)
}

type replaceRequest struct {
	Agents []Agent `validate:"dive"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	list, err := h.service.List(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) replace(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	var body replaceRequest
	if err := httpx.DecodeJSON(r, nil, &body.Agents); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.RespondError(w, httpx.ValidationError(err))
		return
	}
	if err := h.service.Replace(r.Context(), actor, body.Agents); err != nil {
		if h.logger != nil {
			h.logger.Warn("replace agents", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"count": len(body.Agents)})
}
