package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cserv-ai/cserv/internal/shared"
)

func TestRespondErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.Validation("bad"), http.StatusBadRequest},
		{shared.ErrUnauthenticated, http.StatusUnauthorized},
		{shared.Denied("nope"), http.StatusForbidden},
		{shared.ErrCSRFTokenMismatch, http.StatusForbidden},
		{fmt.Errorf("%w: month full", shared.ErrQuotaExceeded), http.StatusUnprocessableEntity},
		{shared.NotFound("leave request", 4), http.StatusNotFound},
		{shared.ErrIdempotencyReplay, http.StatusConflict},
		{shared.Storage("commit", errors.New("conn reset")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		res := httptest.NewRecorder()
		RespondError(res, tc.err)
		require.Equal(t, tc.status, res.Code, tc.err.Error())
	}
}

func TestRespondErrorCarriesCurrentState(t *testing.T) {
	res := httptest.NewRecorder()
	RespondError(res, shared.NewInvalidState("leave request", "approve", "Cancelled"))
	require.Equal(t, http.StatusConflict, res.Code)

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, "Cancelled", body.Current)
	require.Equal(t, "invalid-state", body.Type)
}

func TestStorageErrorHidesCause(t *testing.T) {
	res := httptest.NewRecorder()
	RespondError(res, shared.Storage("commit", errors.New("password=secret")))
	require.NotContains(t, res.Body.String(), "secret")
	require.Equal(t, "1", res.Header().Get("Retry-After"))
}
