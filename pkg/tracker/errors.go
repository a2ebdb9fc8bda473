package tracker

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrNetwork       = errors.New("progress api unreachable")
	ErrUnauthorized  = errors.New("no active session")
	ErrSessionClosed = errors.New("progress session closed")
	ErrNotStarted    = errors.New("progress session not started")
)

// APIError is a non-2xx answer of the progress API. The server always
// answers with a {"message": "..."} body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("progress api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("progress api: %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrValidation:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	}
	return false
}
