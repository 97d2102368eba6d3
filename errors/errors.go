// Package errors holds the sentinel errors shared across layers and
// their mapping to HTTP status codes for the data surface.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Realtime core.
	ErrAuthFailed        = fmt.Errorf("authentication failed")
	ErrNotAuthorized     = fmt.Errorf("user is not a recipient of this chat")
	ErrNotInRoom         = fmt.Errorf("connection has not joined this room")
	ErrEmptyMessage      = fmt.Errorf("message body is empty")
	ErrPersistenceFailed = fmt.Errorf("message could not be persisted")
	ErrConnectionGone    = fmt.Errorf("connection is gone")

	// Data layer.
	ErrUserExists         = fmt.Errorf("username already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrChatNotFound       = fmt.Errorf("chat not found")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidRegister    = fmt.Errorf("invalid registration request")
	ErrBadRequest         = fmt.Errorf("malformed request")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)

// HTTPStatus maps a sentinel (possibly wrapped) to the status code the
// data surface reports. Unknown errors are internal.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrAuthFailed), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotAuthorized), errors.Is(err, ErrNotInRoom):
		return http.StatusForbidden
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidRegister),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUserExists):
		return http.StatusBadRequest
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrChatNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
