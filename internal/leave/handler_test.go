package leave_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/cserv-ai/cserv/internal/leave"
	"github.com/cserv-ai/cserv/internal/platform/httpx"
	"github.com/cserv-ai/cserv/internal/rbac"
)

type principals map[int64]rbac.Principal

func (p principals) FindPrincipal(_ context.Context, id int64) (rbac.Principal, error) {
	return p[id], nil
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	h := newHarness(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	mw := rbac.Middleware{Service: rbac.NewService(principals{}, nil)}
	handler := leave.NewHandler(nil, h.svc, validator.New(), mw)
	r := chi.NewRouter()
	r.Route("/api/leaves", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				var p rbac.Principal
				switch req.Header.Get("X-Test-User") {
				case "admin":
					p = admin
				default:
					p = agent
				}
				next.ServeHTTP(w, req.WithContext(rbac.ContextWithPrincipal(req.Context(), p)))
			})
		})
		handler.MountRoutes(r)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Test-User", user)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestHandlerWorkflow(t *testing.T) {
	router := newRouter(t)

	res := do(t, router, http.MethodPost, "/api/leaves", "agent", `{"leaveDate":"2026-03-10","halfDay":"1st Half","reason":"doctor"}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	path := "/api/leaves/" + strconv.FormatInt(created.ID, 10)

	res = do(t, router, http.MethodPost, path+"/approve", "agent", "")
	require.Equal(t, http.StatusForbidden, res.Code)

	res = do(t, router, http.MethodPost, path+"/reject", "admin", `{"remarks":"short staffed"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Contains(t, res.Body.String(), `"rejectedBy":"a1"`)

	res = do(t, router, http.MethodPost, path+"/cancel", "agent", "")
	require.Equal(t, http.StatusConflict, res.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &problem))
	require.Equal(t, "Rejected", problem.Current)

	res = do(t, router, http.MethodGet, "/api/leaves/quota?month=2026-03", "agent", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"consumed":1`)
}

func TestHandlerRejectsMalformedApplication(t *testing.T) {
	router := newRouter(t)
	res := do(t, router, http.MethodPost, "/api/leaves", "agent", `{"leaveDate":"10/03/2026","halfDay":"1st Half"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	res = do(t, router, http.MethodPost, "/api/leaves", "agent", `{"leaveDate":"2026-03-10","halfDay":"evening"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}
