// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/cserv-ai/cserv/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var stateErr *shared.InvalidStateError
	switch {
	case errors.As(err, &stateErr):
		JSON(w, http.StatusConflict, ProblemDetail{
			Type:    "invalid-state",
			Title:   "Invalid State",
			Status:  http.StatusConflict,
			Detail:  err.Error(),
			Current: stateErr.Current,
		})
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "validation", "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrUnauthenticated), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "unauthenticated", "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrPermissionDenied), errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		Problem(w, http.StatusForbidden, "permission-denied", "Forbidden", err.Error())
	case errors.Is(err, shared.ErrQuotaExceeded):
		Problem(w, http.StatusUnprocessableEntity, "quota-exceeded", "Quota Exceeded", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "not-found", "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidState), errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "conflict", "Conflict", err.Error())
	case errors.Is(err, shared.ErrStorage):
		w.Header().Set("Retry-After", "1")
		Problem(w, http.StatusServiceUnavailable, "storage", "Storage Unavailable", "")
	default:
		Problem(w, http.StatusInternalServerError, "", "Internal Error", "")
	}
}
