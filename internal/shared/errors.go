package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input. Callers must correct and resubmit.
	ErrValidation = errors.New("validation failed")
	// ErrPermissionDenied indicates the actor lacks the capability for the action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrQuotaExceeded indicates the monthly leave limit has been reached.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates a transition guard failed.
	ErrInvalidState = errors.New("invalid state")
	// ErrStorage indicates the persistence collaborator could not commit.
	ErrStorage = errors.New("storage failure")
	// ErrConflict indicates a uniqueness violation or a replayed request.
	ErrConflict = errors.New("conflict")
	// ErrUnauthenticated indicates that no principal is attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// InvalidStateError reports a rejected transition together with the state the
// entity is currently in, so clients can reconcile their view.
type InvalidStateError struct {
	Entity  string
	Current string
	Action  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: cannot %s while %s", e.Entity, e.Action, e.Current)
}

// Unwrap lets errors.Is match ErrInvalidState.
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// NewInvalidState builds an InvalidStateError.
func NewInvalidState(entity, action, current string) error {
	return &InvalidStateError{Entity: entity, Action: action, Current: current}
}

// StorageError wraps a collaborator failure so it matches ErrStorage while
// keeping the driver error reachable through errors.As.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap exposes both the storage sentinel and the cause.
func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// Storage wraps err as a StorageError unless it already carries a domain kind.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Validation formats a validation error.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Denied formats a permission error.
func Denied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}

// NotFound formats a not-found error for the given entity.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
}

// IsDomainError reports whether err already belongs to the error taxonomy.
func IsDomainError(err error) bool {
	for _, kind := range []error{ErrValidation, ErrPermissionDenied, ErrQuotaExceeded, ErrNotFound, ErrInvalidState, ErrStorage, ErrConflict, ErrUnauthenticated, ErrInvalidCredentials} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
