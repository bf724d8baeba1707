package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Identity errors
var (
	ErrHandleTaken        = errors.New("handle already taken")
	ErrInvalidCredentials = errors.New("invalid handle or password")
	ErrUnknownUser        = errors.New("unknown user")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Relationship errors
var (
	ErrSelfRequest    = errors.New("cannot send a friend request to yourself")
	ErrAlreadyFriends = errors.New("already friends")
	ErrNotFriends     = errors.New("task can only be shared with friends")
)

// Task errors
var (
	ErrNotOwner = errors.New("only the owner can do this")
	ErrNotFound = errors.New("not found")
)

// Generic errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTransient    = errors.New("store temporarily unavailable")
)

// TransientError wraps a failure of the backing store. It matches both
// ErrTransient and the underlying cause with errors.Is.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() []error {
	return []error{ErrTransient, e.Err}
}

// Transient wraps err as a TransientStoreFailure. Returns nil for nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransientError
	if errors.As(err, &te) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}

// StepError reports the step of a multi-step operation that failed.
// Steps before Step have been applied and are left in place.
type StepError struct {
	Operation string
	Step      string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed at step %q: %v", e.Operation, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Invalid returns an ErrInvalidInput carrying a reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// HTTPStatus maps an error to the status code used by the HTTP layer.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrTransient):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrSelfRequest),
		errors.Is(err, ErrUnknownUser),
		errors.Is(err, ErrNotFriends):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrHandleTaken), errors.Is(err, ErrAlreadyFriends):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text shown to users for err. Store failures get a
// generic retry message and never describe partial progress.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransient):
		return "Something went wrong, please try again"
	case errors.Is(err, ErrInvalidInput):
		return err.Error()
	}
	for _, known := range []error{
		ErrHandleTaken, ErrInvalidCredentials, ErrUnknownUser, ErrUnauthorized,
		ErrSelfRequest, ErrAlreadyFriends, ErrNotFriends, ErrNotOwner, ErrNotFound,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}
