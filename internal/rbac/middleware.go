package rbac

import (
	"log/slog"
	"net/http"

	"github.com/cserv-ai/cserv/internal/platform/httpx"
	"github.com/cserv-ai/cserv/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate resolves the session principal and stores it in the request
// context. Requests without an active principal get 401.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == 0 {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		p, err := m.Service.Principal(r.Context(), sess.User())
		if err != nil {
			m.logError("rbac authenticate", err)
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// Require ensures the current principal holds module.action and the module
// is enabled.
func (m Middleware) Require(module Module, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if err := m.Service.Authorize(r.Context(), p, module, action); err != nil {
				m.logError("rbac require", err)
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireModule only checks the module switch. Used on routes whose
// capability checks live in the service.
func (m Middleware) RequireModule(module Module) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if err := m.Service.ModuleAccess(r.Context(), p, module); err != nil {
				m.logError("rbac module", err)
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdministrative restricts a route to admin and superadmin.
func (m Middleware) RequireAdministrative(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		if !IsAdministrative(p) {
			httpx.RespondError(w, shared.Denied("administrative role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) logError(msg string, err error) {
	if m.Logger == nil || shared.IsDomainError(err) {
		return
	}
	m.Logger.Error(msg, slog.Any("error", err))
}
