// Package services – TransitionService
//
// This file implements the status transition engine. A transition is
// serialized per order twice over: an in-process lock with a bounded wait
// keeps concurrent requests in one process from racing, and the write itself
// is a compare-and-swap on (id, status, version) so requests coming through
// other processes resolve deterministically as well. Of two racing requests
// exactly one commits; the other sees ErrStaleState (or ErrInvalidTransition
// when the edge is no longer legal from the winner's status).
//
// Each accepted transition appends one history entry and one
// order.status_changed outbox event in the same database transaction.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-core/internal/domain"
	"github.com/tbourn/go-order-core/internal/repo"
)

// DefaultLockTimeout bounds the wait for the per-order lock when
// TransitionService.LockTimeout is zero.
const DefaultLockTimeout = 2 * time.Second

// TransitionService validates and applies order status changes.
type TransitionService struct {
	DB *gorm.DB

	// LockTimeout bounds the wait for the per-order lock.
	LockTimeout time.Duration

	// Now is the clock; nil means time.Now.
	Now func() time.Time

	locks keyedLocks
}

// Transition moves order id to target. When expected is non-nil the order
// must currently be in that status.
//
// Checks, in order:
//   - target must be a known status (ErrInvalidTransition)
//   - the per-order lock must be acquired in time (ErrOrderBusy)
//   - the order must exist (ErrOrderNotFound)
//   - expected, if given, must match the current status (ErrStaleState)
//   - the current status must not be terminal (ErrTerminalState)
//   - (current, target) must be a table edge (ErrInvalidTransition)
//
// A rejected request leaves the order, its history and the outbox untouched.
// Repeating an already applied transition is not a no-op: the second request
// is rejected like any other illegal or stale one.
func (s *TransitionService) Transition(ctx context.Context, id string, target domain.Status, expected *domain.Status) (*OrderSnapshot, error) {
	tr := otel.Tracer("services/TransitionService")
	ctx, span := tr.Start(ctx, "Transition",
		trace.WithAttributes(
			attribute.String("order.id", id),
			attribute.String("order.target_status", string(target)),
		),
	)
	defer span.End()

	var from domain.Status
	snap, err := s.transition(ctx, id, target, expected, &from)

	toLabel := string(target)
	if !target.Valid() {
		toLabel = "unknown"
	}
	orderTransitions.WithLabelValues(string(from), toLabel, transitionResult(err)).Inc()

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("order.from_status", string(from)))
	return snap, nil
}

func (s *TransitionService) transition(ctx context.Context, id string, target domain.Status, expected *domain.Status, from *domain.Status) (*OrderSnapshot, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown target status %q", ErrInvalidTransition, target)
	}

	timeout := s.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	release, err := s.locks.acquire(ctx, id, timeout)
	if errors.Is(err, errLockTimeout) {
		return nil, fmt.Errorf("%w: lock wait exceeded %s", ErrOrderBusy, timeout)
	}
	if err != nil {
		return nil, err
	}
	defer release()

	var snap *OrderSnapshot
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := repo.GetOrderForUpdate(ctx, tx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		*from = cur.Status

		if expected != nil && *expected != cur.Status {
			return fmt.Errorf("%w: expected %s, order is %s", ErrStaleState, *expected, cur.Status)
		}
		if cur.Status.Terminal() {
			return fmt.Errorf("%w: order is %s", ErrTerminalState, cur.Status)
		}
		if !domain.CanTransition(cur.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, target)
		}

		now := s.now()
		if _, err := repo.ApplyTransition(ctx, tx, cur, target, now); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return fmt.Errorf("%w: concurrent update of order %s", ErrStaleState, id)
			}
			return err
		}

		ev := domain.StatusChange{
			OrderID:     cur.ID,
			OrderNumber: cur.Number,
			From:        *from,
			To:          target,
			Version:     cur.Version,
			At:          now.UTC(),
		}
		if _, err := repo.InsertEvent(ctx, tx, cur.ID, domain.EventOrderStatusChanged, ev, now); err != nil {
			return err
		}

		full, err := repo.GetOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		snap = NewSnapshot(full)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *TransitionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// transitionResult is the metrics label for err.
func transitionResult(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrStaleState):
		return "stale_state"
	case errors.Is(err, ErrTerminalState):
		return "terminal_state"
	case errors.Is(err, ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, ErrOrderBusy):
		return "busy"
	default:
		return "error"
	}
}
