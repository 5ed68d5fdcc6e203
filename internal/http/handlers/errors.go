package handlers

import (
	"context"
	"errors"
	"net/http"

	"dreambot/internal/comfy"
	"dreambot/internal/domain"
)

// classify maps a generation error to a stable code, an HTTP status for
// non-streaming endpoints, and a message fit for end users.
func classify(err error) (code string, status int, message string) {
	var userErr *domain.UserError
	var backendErr *comfy.BackendError
	switch {
	case errors.As(err, &userErr):
		return "invalid_request", http.StatusBadRequest, userErr.Message
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request", http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited", http.StatusTooManyRequests, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "not_found", http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrShuttingDown):
		return "shutting_down", http.StatusServiceUnavailable, "the generator is shutting down"
	case errors.As(err, &backendErr):
		return "backend_error", http.StatusBadGateway, backendErr.Error()
	case errors.Is(err, comfy.ErrTimeout):
		return "timeout", http.StatusGatewayTimeout, "timed out waiting for the backend"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled", http.StatusRequestTimeout, "request canceled"
	default:
		return "internal", http.StatusInternalServerError, "generation failed"
	}
}
