package roster

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cserv-ai/cserv/internal/platform/httpx"
	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
)

// Handler serves roster endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validate, rbac: mw}
}

// MountRoutes registers roster routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireModule(rbac.ModuleRoster))
	r.Get("/", h.list)
	r.Post("/", h.save)
	r.Get("/{id}", h.get)
	r.Post("/{id}/approve", h.approve)
	r.Delete("/{id}", h.delete)
}

type saveRequest struct {
	Title      string          `json:"title" validate:"max=200"`
	Month      int             `json:"month" validate:"required,min=1,max=12"`
	Year       int             `json:"year" validate:"required,min=2000,max=2100"`
	AgentCount int             `json:"agentCount" validate:"min=0"`
	TargetWO   int             `json:"targetWO" validate:"min=0"`
	Document   json.RawMessage `json:"document" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	list, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.fail(w, "list rosters", err)
		return
	}
	if list == nil {
		list = []Roster{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	var body saveRequest
	if err := httpx.DecodeJSON(r, h.validate, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	saved, err := h.service.Save(r.Context(), actor, SaveInput{
		Title:      body.Title,
		Month:      body.Month,
		Year:       body.Year,
		AgentCount: body.AgentCount,
		TargetWO:   body.TargetWO,
		Document:   body.Document,
	})
	if err != nil {
		h.fail(w, "save roster", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"ok": true, "id": saved.ID})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "get roster", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Approve(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "approve roster", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "roster": out.Summary()})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, "delete roster", err)
		return
	}
	httpx.OK(w, nil)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrStorage) || !shared.IsDomainError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
