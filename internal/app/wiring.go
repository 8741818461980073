package app

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cserv-ai/cserv/internal/agents"
	"github.com/cserv-ai/cserv/internal/auth"
	"github.com/cserv-ai/cserv/internal/leave"
	"github.com/cserv-ai/cserv/internal/notify"
	"github.com/cserv-ai/cserv/internal/observability"
	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/roster"
	"github.com/cserv-ai/cserv/internal/settings"
	"github.com/cserv-ai/cserv/internal/shared"
	"github.com/cserv-ai/cserv/internal/users"
	"github.com/cserv-ai/cserv/jobs"
)

// SessionCookie names the session cookie.
const SessionCookie = "cserv_session"

// Stores bundles the persistence layer of one backend.
type Stores struct {
	Users         users.RepositoryPort
	Leaves        leave.RepositoryPort
	Rosters       roster.RepositoryPort
	Notifications notify.Repository
	Agents        agents.RepositoryPort
	Settings      settings.RepositoryPort
	Sessions      auth.Repository
	Idempotency   leave.IdempotencyStore
	Approvals     leave.ApprovalRecorder
	Audit         leave.AuditLogger
}

// NewPostgresStores binds every repository to pool.
func NewPostgresStores(pool *pgxpool.Pool, logger *slog.Logger) Stores {
	return Stores{
		Users:         users.NewRepository(pool),
		Leaves:        leave.NewRepository(pool),
		Rosters:       roster.NewRepository(pool),
		Notifications: notify.NewRepository(pool),
		Agents:        agents.NewRepository(pool),
		Settings:      settings.NewRepository(pool),
		Sessions:      auth.NewRepository(pool),
		Idempotency:   shared.NewIdempotencyStore(pool),
		Approvals:     shared.NewApprovalRecorder(pool, logger),
		Audit:         shared.NewAuditLogger(pool),
	}
}

// NewMemoryStores returns process-local stores. The audit trail is not kept.
func NewMemoryStores(clock shared.Clock) Stores {
	return Stores{
		Users:         users.NewMemoryRepository(),
		Leaves:        leave.NewMemoryRepository(),
		Rosters:       roster.NewMemoryRepository(),
		Notifications: notify.NewMemoryRepository(),
		Agents:        agents.NewMemoryRepository(),
		Settings:      settings.NewMemoryRepository(),
		Sessions:      auth.NewMemoryRepository(),
		Idempotency:   shared.NewMemoryIdempotencyStore(clock),
		Approvals:     shared.NewMemoryApprovalRecorder(clock),
	}
}

// Deps carries everything Assemble needs.
type Deps struct {
	Config     *Config
	Logger     *slog.Logger
	Stores     Stores
	Redis      *redis.Client
	Deliverers []notify.Deliverer
	Metrics    *observability.Metrics
	Inspector  *asynq.Inspector
	Clock      shared.Clock
	// HashCost overrides the bcrypt cost, tests lower it.
	HashCost int
}

// Application holds the assembled services and the HTTP handler.
type Application struct {
	Router     http.Handler
	Users      *users.Service
	Leaves     *leave.Service
	Rosters    *roster.Service
	Agents     *agents.Service
	Settings   *settings.Service
	Dispatcher *notify.Dispatcher
	RBAC       *rbac.Service
}

// Assemble wires services, handlers and the router.
func Assemble(d Deps) *Application {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	validate := validator.New()

	// users and the dispatcher depend on each other: the dispatcher resolves
	// recipients through the directory, users dispatches registrations.
	directory := &directoryProxy{}
	var observer notify.Observer
	var transitions leave.TransitionObserver
	if d.Metrics != nil {
		observer = d.Metrics
		transitions = d.Metrics
	}
	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		Repository: d.Stores.Notifications,
		Directory:  directory,
		Deliverers: d.Deliverers,
		Logger:     logger,
		Observer:   observer,
		Retention:  cfg.NotificationRetention,
		Clock:      d.Clock,
	})
	userSvc := users.NewService(d.Stores.Users, dispatcher, logger, users.ServiceConfig{HashCost: d.HashCost, Clock: d.Clock})
	directory.Directory = userSvc

	settingsSvc := settings.NewService(d.Stores.Settings, logger)
	rbacSvc := rbac.NewService(userSvc, settingsSvc)
	mw := rbac.Middleware{Service: rbacSvc, Logger: logger}

	leaveSvc := leave.NewService(d.Stores.Leaves, dispatcher, logger, leave.ServiceConfig{
		MonthlyLimit: cfg.LeaveMonthlyLimit,
		Location:     cfg.Location(),
		Clock:        d.Clock,
		Approvals:    d.Stores.Approvals,
		Audit:        d.Stores.Audit,
		Idempotency:  d.Stores.Idempotency,
		Observer:     transitions,
	})
	rosterSvc := roster.NewService(d.Stores.Rosters, dispatcher, logger, roster.ServiceConfig{
		Retention: cfg.RosterRetention,
		Clock:     d.Clock,
		Approvals: d.Stores.Approvals,
		Observer:  transitions,
	})
	agentSvc := agents.NewService(d.Stores.Agents, logger)
	notifySvc := notify.NewService(d.Stores.Notifications)

	sessions := shared.NewSessionManager(d.Redis, SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	authSvc := auth.NewService(d.Stores.Sessions, userSvc, rbacSvc, settingsSvc, d.Clock)

	router := NewRouter(RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessions,
		CSRFManager:          csrf,
		RBACMiddleware:       mw,
		AuthHandler:          auth.NewHandler(logger, authSvc, sessions, csrf, validate, mw),
		LeaveHandler:         leave.NewHandler(logger, leaveSvc, validate, mw),
		RosterHandler:        roster.NewHandler(logger, rosterSvc, validate, mw),
		NotificationsHandler: notify.NewHandler(logger, notifySvc),
		AgentsHandler:        agents.NewHandler(logger, agentSvc, validate, mw),
		UsersHandler:         users.NewHandler(logger, userSvc, validate, mw),
		SettingsHandler:      settings.NewHandler(settingsSvc, validate, mw),
		PermissionsHandler:   rbac.NewPermissionsHandler(mw),
		JobHandler:           jobs.NewHandler(d.Inspector, logger),
		Metrics:              d.Metrics,
		AccessLog:            !InTestMode(),
	})

	return &Application{
		Router:     router,
		Users:      userSvc,
		Leaves:     leaveSvc,
		Rosters:    rosterSvc,
		Agents:     agentSvc,
		Settings:   settingsSvc,
		Dispatcher: dispatcher,
		RBAC:       rbacSvc,
	}
}

// directoryProxy breaks the construction cycle between the dispatcher and the
// users service.
type directoryProxy struct {
	notify.Directory
}
