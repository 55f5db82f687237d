package tracker

import (
	"errors"
	"fmt"
	"net/http"
)

// Remote error codes returned by the ticket service.
const (
	CodeHotlistNotFound   = "HOTLIST_NOT_FOUND"
	CodeComponentNotFound = "COMPONENT_NOT_FOUND"
)

// Error is a remote ticket service failure carrying the HTTP status.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("ticket service error: status %d", e.Status)
}

// HotlistNotFoundError is returned when the requested hotlist does not
// exist on the remote side.
type HotlistNotFoundError struct {
	HotlistID int64
}

func (e *HotlistNotFoundError) Error() string {
	return fmt.Sprintf("No Hotlist with id: %d", e.HotlistID)
}

// ComponentNotFoundError is returned when the requested component does not
// exist on the remote side.
type ComponentNotFoundError struct {
	ComponentID int64
}

func (e *ComponentNotFoundError) Error() string {
	return fmt.Sprintf("Component %d does not exist", e.ComponentID)
}

// IsTransient reports whether the error is worth retrying: transport
// failures, rate limiting and server-side errors. Typed not-found errors
// and client errors are permanent.
func IsTransient(err error) bool {
	var hotlistErr *HotlistNotFoundError
	var componentErr *ComponentNotFoundError
	if errors.As(err, &hotlistErr) || errors.As(err, &componentErr) {
		return false
	}
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Status == http.StatusTooManyRequests || remoteErr.Status >= 500
	}
	// Transport-level failures carry no status and may be transient.
	return true
}
