package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/okian/gridstat/internal/adapters/backend"
	"github.com/okian/gridstat/internal/adapters/mq/queue"
	"github.com/okian/gridstat/internal/adapters/repository"
	service "github.com/okian/gridstat/internal/app"
	"github.com/okian/gridstat/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
)

// classify maps an error from the service layer to a status and code.
func classify(err error) (int, string) {
	var (
		statusErr *backend.StatusError
		urlErr    *url.Error
	)
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidQuery),
		errors.Is(err, model.ErrInvalidWeek):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, service.ErrSessionClosed):
		return http.StatusGone, "session_closed"
	case errors.Is(err, backend.ErrNoData), repository.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, queue.ErrFull), errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, backend.ErrRejected), errors.As(err, &statusErr), errors.As(err, &urlErr):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
