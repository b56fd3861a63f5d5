package backend

import (
	"errors"
	"fmt"
)

// Sentinel kinds for backend errors.
var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrRejected     = errors.New("backend: request rejected")
	ErrNoData       = errors.New("backend: no data")
)

// StatusError carries a non-2xx HTTP status from the backend.
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s returned %d: %s", e.Endpoint, e.Status, e.Body)
}
