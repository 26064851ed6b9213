// Package handlers defines the error codes of the public API.
//
// Every error response carries one of these codes in the standard envelope
// (see ErrorResponse). Clients branch on the code, not on the message.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "stale_state",
//	  "message": "stale order state: expected pending, order is paid"
//	}
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-order-core/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodePayloadInvalid    = "payload_invalid"
	ErrCodeStaleState        = "stale_state"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeTerminalState     = "terminal_state"
	ErrCodeOrderBusy         = "order_busy"
	ErrCodeCreationFailed    = "creation_failed"
	ErrCodeDuplicateInFlight = "duplicate_in_flight"
	ErrCodeTimeout           = "timeout"
)

// failService maps a service error onto the HTTP error envelope. Retryable
// errors carry Retry-After.
func failService(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, ErrCodeInternal
	switch {
	case errors.Is(err, services.ErrPayloadInvalid):
		status, code = http.StatusBadRequest, ErrCodePayloadInvalid
	case errors.Is(err, services.ErrOrderNotFound):
		status, code = http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, services.ErrStaleState):
		status, code = http.StatusConflict, ErrCodeStaleState
	case errors.Is(err, services.ErrDuplicateInFlight):
		status, code = http.StatusConflict, ErrCodeDuplicateInFlight
	case errors.Is(err, services.ErrInvalidTransition):
		status, code = http.StatusUnprocessableEntity, ErrCodeInvalidTransition
	case errors.Is(err, services.ErrTerminalState):
		status, code = http.StatusUnprocessableEntity, ErrCodeTerminalState
	case errors.Is(err, services.ErrOrderBusy):
		status, code = http.StatusServiceUnavailable, ErrCodeOrderBusy
	case errors.Is(err, services.ErrCreationFailed):
		status, code = http.StatusServiceUnavailable, ErrCodeCreationFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Gave up waiting on a claim or an order lock; the work may still land.
		failRetry(c, http.StatusServiceUnavailable, ErrCodeTimeout, "request gave up waiting, retry later")
		return
	}

	msg := err.Error()
	if code == ErrCodeInternal {
		msg = "internal server error"
		_ = c.Error(err)
	}
	if services.IsRetryable(err) {
		failRetry(c, status, code, msg)
		return
	}
	fail(c, status, code, msg)
}
