package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cserv-ai/cserv/internal/auth"
	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/settings"
	"github.com/cserv-ai/cserv/internal/shared"
	"github.com/cserv-ai/cserv/internal/users"
	_ "github.com/cserv-ai/cserv/testing"
)

type harness struct {
	router   chi.Router
	sessions *shared.SessionManager
	records  *auth.MemoryRepository
	accounts *users.MemoryRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	accounts := users.NewMemoryRepository()
	hash, err := bcrypt.GenerateFromPassword([]byte("Admin@123"), bcrypt.MinCost)
	require.NoError(t, err)
	accounts.Seed(users.User{Username: "admin", Name: "Administrator", Role: rbac.RoleSuperAdmin, PasswordHash: string(hash), Active: true, Protected: true})
	accounts.Seed(users.User{Username: "retired", Name: "Retired", Role: rbac.RoleOperator, PasswordHash: string(hash), Active: false})

	userSvc := users.NewService(accounts, nil, nil, users.ServiceConfig{HashCost: bcrypt.MinCost})
	settingsSvc := settings.NewService(settings.NewMemoryRepository(), nil)
	authz := rbac.NewService(userSvc, settingsSvc)
	records := auth.NewMemoryRepository()
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)

	svc := auth.NewService(records, userSvc, authz, settingsSvc, nil)
	handler := auth.NewHandler(nil, svc, sessions, shared.NewCSRFManager("csrfsecret"), nil, rbac.Middleware{Service: authz})

	r := chi.NewRouter()
	r.Route("/api", handler.MountRoutes)
	return &harness{router: r, sessions: sessions, records: records, accounts: accounts}
}

// do serves req inside a loaded session and persists it afterwards.
func (h *harness) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	ctx := context.Background()
	sess, err := h.sessions.Load(ctx, req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	res := httptest.NewRecorder()
	h.router.ServeHTTP(res, req)
	require.NoError(t, h.sessions.Commit(ctx, httptest.NewRecorder(), sess))
	return res, sess
}

func (h *harness) withCookie(req *http.Request, sess *shared.Session) *http.Request {
	req.AddCookie(&http.Cookie{Name: h.sessions.CookieName(), Value: sess.ID})
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestLoginSetsSessionAndReturnsProfile(t *testing.T) {
	h := newHarness(t)

	res, sess := h.do(t, jsonRequest(http.MethodPost, "/api/login", `{"username":"admin","password":"Admin@123"}`))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, int64(1), sess.User())
	require.NotEmpty(t, sess.Get(shared.CSRFSessionKey))

	var profile auth.Profile
	require.NoError(t, json.NewDecoder(res.Body).Decode(&profile))
	require.Equal(t, "admin", profile.User.Username)
	require.Equal(t, sess.Get(shared.CSRFSessionKey), profile.CSRFToken)
	require.Len(t, profile.Permissions, len(rbac.AllCapabilities()))
	require.Equal(t, settings.Defaults, profile.Settings)

	rec, ok := h.records.Session(sess.ID)
	require.True(t, ok)
	require.Equal(t, int64(1), rec.UserID)
	require.True(t, rec.ExpiresAt.After(rec.CreatedAt))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newHarness(t)
	cases := map[string]string{
		"wrong password": `{"username":"admin","password":"nope"}`,
		"unknown user":   `{"username":"ghost","password":"Admin@123"}`,
		"inactive user":  `{"username":"retired","password":"Admin@123"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			res, sess := h.do(t, jsonRequest(http.MethodPost, "/api/login", body))
			require.Equal(t, http.StatusUnauthorized, res.Code)
			require.Zero(t, sess.User())
		})
	}

	res, _ := h.do(t, jsonRequest(http.MethodPost, "/api/login", `{"username":"admin"}`))
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestMeRequiresSession(t *testing.T) {
	h := newHarness(t)

	res, _ := h.do(t, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)

	_, sess := h.do(t, jsonRequest(http.MethodPost, "/api/login", `{"username":"admin","password":"Admin@123"}`))
	res, _ = h.do(t, h.withCookie(httptest.NewRequest(http.MethodGet, "/api/me", nil), sess))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var profile auth.Profile
	require.NoError(t, json.NewDecoder(res.Body).Decode(&profile))
	require.Equal(t, int64(1), profile.User.ID)
	require.Equal(t, sess.Get(shared.CSRFSessionKey), profile.CSRFToken)
	require.NotEmpty(t, profile.Catalog)
}

func TestLogoutDestroysSession(t *testing.T) {
	h := newHarness(t)

	_, sess := h.do(t, jsonRequest(http.MethodPost, "/api/login", `{"username":"admin","password":"Admin@123"}`))
	res, _ := h.do(t, h.withCookie(httptest.NewRequest(http.MethodPost, "/api/logout", nil), sess))
	require.Equal(t, http.StatusOK, res.Code)

	_, ok := h.records.Session(sess.ID)
	require.False(t, ok)

	res, _ = h.do(t, h.withCookie(httptest.NewRequest(http.MethodGet, "/api/me", nil), sess))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRegisterCreatesOperatorWithoutCapabilities(t *testing.T) {
	h := newHarness(t)

	res, _ := h.do(t, jsonRequest(http.MethodPost, "/api/register", `{"username":"newbie","password":"secret1","name":"new agent"}`))
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	var view users.View
	require.NoError(t, json.NewDecoder(res.Body).Decode(&view))
	require.Equal(t, rbac.RoleOperator, view.Role)
	require.Zero(t, view.Permissions.Len())

	res, _ = h.do(t, jsonRequest(http.MethodPost, "/api/register", `{"username":"NEWBIE","password":"secret1","name":"dup"}`))
	require.Equal(t, http.StatusConflict, res.Code)

	res, _ = h.do(t, jsonRequest(http.MethodPost, "/api/login", `{"username":"newbie","password":"secret1"}`))
	require.Equal(t, http.StatusOK, res.Code)
}
