// Package services defines the business logic of the order core: the
// checkout idempotency guard, the status transition engine and the order
// query. This file centralizes the service-level error values so that they
// can be consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer. Details are attached with fmt.Errorf("%w: ..."), so
// callers branch with errors.Is.
package services

import "errors"

// Transition errors.
var (
	// ErrInvalidTransition is returned when the target status is unknown or
	// (current, target) is not an edge of the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStaleState is returned when the caller's expected current status does
	// not match, or a concurrent transition won the compare-and-swap.
	ErrStaleState = errors.New("stale order state")

	// ErrOrderNotFound indicates that the requested order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrTerminalState is returned when the order is delivered or canceled.
	ErrTerminalState = errors.New("order is in a terminal state")

	// ErrOrderBusy is returned when the per-order lock could not be acquired
	// within the configured bound.
	ErrOrderBusy = errors.New("order is busy")
)

// Checkout errors.
var (
	// ErrPayloadInvalid is returned when the idempotency key or the checkout
	// payload fails validation.
	ErrPayloadInvalid = errors.New("checkout payload invalid")

	// ErrCreationFailed is returned when the order could not be persisted. The
	// key is left claimable, so the same key may be retried.
	ErrCreationFailed = errors.New("order creation failed")

	// ErrDuplicateInFlight is returned when another submission with the same
	// key is still being processed after the bounded wait.
	ErrDuplicateInFlight = errors.New("submission with this key is in flight")
)

// IsRetryable reports whether the caller may retry the same request (with the
// same idempotency key, for checkouts) and expect a different outcome.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCreationFailed) ||
		errors.Is(err, ErrDuplicateInFlight) ||
		errors.Is(err, ErrOrderBusy)
}
