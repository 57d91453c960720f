package api

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced match, user or bet does not
// exist. Callers typically navigate to a not-found state on it.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx or backend-rejected response. Requests are never
// retried automatically; every action is user-retriable by re-invoking it.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s: %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api %s: %d", e.Endpoint, e.StatusCode)
}

// IsBackendRejection reports whether err carries a reason the backend
// supplied itself (e.g. a duplicate username), as opposed to a transport
// or decoding failure.
func IsBackendRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Message != ""
}
