package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cserv-ai/cserv/internal/agents"
	"github.com/cserv-ai/cserv/internal/auth"
	"github.com/cserv-ai/cserv/internal/leave"
	"github.com/cserv-ai/cserv/internal/notify"
	"github.com/cserv-ai/cserv/internal/observability"
	"github.com/cserv-ai/cserv/internal/platform/httpx"
	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/roster"
	"github.com/cserv-ai/cserv/internal/settings"
	"github.com/cserv-ai/cserv/internal/shared"
	"github.com/cserv-ai/cserv/internal/users"
	"github.com/cserv-ai/cserv/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	RBACMiddleware rbac.Middleware

	AuthHandler          *auth.Handler
	LeaveHandler         *leave.Handler
	RosterHandler        *roster.Handler
	NotificationsHandler *notify.Handler
	AgentsHandler        *agents.Handler
	UsersHandler         *users.Handler
	SettingsHandler      *settings.Handler
	PermissionsHandler   *rbac.PermissionsHandler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics

	// AccessLog enables chi's request logger.
	AccessLog bool
}

// NewRouter constructs the chi.Router with the API routes.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.AccessLog {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, shared.NotFound("route", r.URL.Path))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(params.RBACMiddleware.Authenticate)
			r.Route("/leaves", params.LeaveHandler.MountRoutes)
			r.Route("/rosters", params.RosterHandler.MountRoutes)
			r.Route("/notifications", params.NotificationsHandler.MountRoutes)
			r.Route("/agents", params.AgentsHandler.MountRoutes)
			r.Route("/admin", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireAdministrative)
				r.Route("/users", params.UsersHandler.MountRoutes)
				r.Route("/permissions", params.PermissionsHandler.MountRoutes)
				params.SettingsHandler.MountRoutes(r)
			})
		})
	})

	return r
}
