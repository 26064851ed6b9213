// Package services – CheckoutService
//
// This file implements the idempotency guard in front of order creation.
// A submission first claims its key with a unique-constraint-backed insert;
// only the claimant creates the order. Everyone else observes the record:
//
//   - completed: the original order id is returned (Replayed=true) and the
//     new payload is ignored, even if it differs
//   - failed, or in_flight past its expiry: the key is re-claimed with a
//     compare-and-swap on the observed claim token and creation runs again
//   - in_flight and live: the caller waits, bounded by WaitTimeout, and then
//     gets ErrDuplicateInFlight
//
// Order creation, the order.created outbox event and the completion of the
// claim commit in one transaction, and completion is conditional on the
// claim token. A claimant that lost its claim therefore cannot create a
// second order. The unique index on orders.idempotency_key backs this up
// when a key is reused after its record was purged.
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/currency"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-core/internal/domain"
	"github.com/tbourn/go-order-core/internal/repo"
)

// Limits and defaults of the checkout guard.
const (
	MaxKeyLength     = 200
	MaxLineItems     = 500
	maxRefLength     = 128
	DefaultTTL       = 24 * time.Hour
	DefaultWait      = 5 * time.Second
	DefaultPoll      = 100 * time.Millisecond
	fallbackCurrency = "USD"
)

// CheckoutPayload is the input of a checkout submission. Amounts are in
// minor units. AmountTotal is optional: when non-zero it must equal the sum
// of the line items.
type CheckoutPayload struct {
	BuyerRef    string          `json:"buyer_ref"`
	Currency    string          `json:"currency,omitempty"`
	AmountTotal int64           `json:"amount_total,omitempty"`
	LineItems   []LineItemInput `json:"line_items"`
}

// LineItemInput is one requested line item.
type LineItemInput struct {
	ProductRef string `json:"product_ref"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
}

// Submission is the result of Submit. Replayed is true when the order was
// created by an earlier submission with the same key.
type Submission struct {
	OrderID  string `json:"order_id"`
	Replayed bool   `json:"replayed"`
}

// CheckoutService turns checkout submissions into exactly one order per key.
// Several instances may share one database; the in-process wake-up only
// shortens waits, correctness comes from the database.
type CheckoutService struct {
	DB *gorm.DB

	// TTL is how long a claim (and then its completed record) is kept.
	TTL time.Duration
	// WaitTimeout bounds how long a duplicate waits for an in-flight claim.
	WaitTimeout time.Duration
	// PollInterval is the re-read period while waiting.
	PollInterval time.Duration
	// DefaultCurrency applies when the payload has none.
	DefaultCurrency string

	// Now is the clock; nil means time.Now.
	Now func() time.Time

	mu      sync.Mutex
	waiters map[string]chan struct{}
}

// Submit deduplicates and processes one checkout submission.
//
// Errors:
//   - ErrPayloadInvalid: bad key or payload (final)
//   - ErrDuplicateInFlight: another submission with the key is still running
//     (retryable)
//   - ErrCreationFailed: storage failure; the key stays claimable (retryable)
//   - ctx.Err() if the caller gives up while waiting
func (s *CheckoutService) Submit(ctx context.Context, key string, p CheckoutPayload) (*Submission, error) {
	tr := otel.Tracer("services/CheckoutService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(attribute.Int("checkout.line_items", len(p.LineItems))),
	)
	defer span.End()

	sub, err := s.submit(ctx, strings.TrimSpace(key), p)
	checkoutSubmissions.WithLabelValues(submitOutcome(sub, err)).Inc()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("order.id", sub.OrderID),
		attribute.Bool("checkout.replayed", sub.Replayed),
	)
	return sub, nil
}

func (s *CheckoutService) submit(ctx context.Context, key string, p CheckoutPayload) (*Submission, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", ErrPayloadInvalid)
	}
	if len(key) > MaxKeyLength {
		return nil, fmt.Errorf("%w: idempotency key longer than %d bytes", ErrPayloadInvalid, MaxKeyLength)
	}

	var deadline time.Time
	for {
		now := s.now()
		rec, err := repo.ClaimIdempotency(ctx, s.DB, key, s.ttl(), now)
		if err == nil {
			return s.create(ctx, rec, p)
		}
		if !errors.Is(err, repo.ErrDuplicate) {
			return nil, s.storageErr(ctx, "claim", err)
		}

		existing, err := repo.GetIdempotency(ctx, s.DB, key)
		if errors.Is(err, repo.ErrNotFound) {
			// Purged between our insert and read; claim again.
			continue
		}
		if err != nil {
			return nil, s.storageErr(ctx, "read claim", err)
		}

		switch existing.EffectiveState(s.now()) {
		case domain.IdempotencyCompleted:
			if existing.OrderID == nil {
				return nil, fmt.Errorf("%w: completed record without order", ErrCreationFailed)
			}
			return &Submission{OrderID: *existing.OrderID, Replayed: true}, nil

		case domain.IdempotencyFailed:
			rec, err := repo.ReclaimIdempotency(ctx, s.DB, key, existing.Token, s.ttl(), s.now())
			if err == nil {
				return s.create(ctx, rec, p)
			}
			if !errors.Is(err, repo.ErrConflict) {
				return nil, s.storageErr(ctx, "reclaim", err)
			}
			// Someone else re-claimed first; observe their claim.

		default:
			if deadline.IsZero() {
				deadline = time.Now().Add(s.waitTimeout())
			}
			remaining := time.Until(deadline)
			if remaining <= 0 {
				s.forget(key)
				return nil, fmt.Errorf("%w: waited %s", ErrDuplicateInFlight, s.waitTimeout())
			}
			if err := s.wait(ctx, key, min(remaining, s.pollInterval())); err != nil {
				return nil, err
			}
		}
	}
}

// create validates the payload and materializes the order for the holder of
// rec's claim.
func (s *CheckoutService) create(ctx context.Context, rec *domain.Idempotency, p CheckoutPayload) (*Submission, error) {
	defer s.notify(rec.Key)

	in, err := s.validate(rec.Key, p)
	if err != nil {
		s.release(ctx, rec)
		return nil, err
	}

	now := s.now()
	var created *domain.Order
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := repo.CreateOrder(ctx, tx, in, now)
		if err != nil {
			return err
		}
		ev := domain.OrderCreated{
			OrderID:     o.ID,
			OrderNumber: o.Number,
			BuyerRef:    o.BuyerRef,
			Currency:    o.Currency,
			AmountTotal: o.AmountTotal,
			At:          o.CreatedAt,
		}
		if _, err := repo.InsertEvent(ctx, tx, o.ID, domain.EventOrderCreated, ev, now); err != nil {
			return err
		}
		if err := repo.CompleteIdempotency(ctx, tx, rec.Key, rec.Token, o.ID, now); err != nil {
			return err
		}
		created = o
		return nil
	})

	switch {
	case err == nil:
		return &Submission{OrderID: created.ID}, nil

	case errors.Is(err, repo.ErrConflict):
		// Our claim expired and was taken over; the new claimant owns the key.
		return nil, fmt.Errorf("%w: claim on key was lost", ErrCreationFailed)

	case errors.Is(err, repo.ErrDuplicate):
		// The key already produced an order whose record has since been purged.
		o, gerr := repo.GetOrderByIdempotencyKey(ctx, s.DB, rec.Key)
		if gerr == nil {
			if cerr := repo.CompleteIdempotency(ctx, s.DB, rec.Key, rec.Token, o.ID, s.now()); cerr != nil {
				log.Warn().Err(cerr).Str("order_id", o.ID).Msg("checkout: could not re-complete idempotency record")
			}
			return &Submission{OrderID: o.ID, Replayed: true}, nil
		}
		s.release(ctx, rec)
		return nil, s.storageErr(ctx, "create order", err)

	default:
		s.release(ctx, rec)
		return nil, s.storageErr(ctx, "create order", err)
	}
}

// validate checks p and computes the order input. Currency codes are
// normalized to upper case.
func (s *CheckoutService) validate(key string, p CheckoutPayload) (repo.NewOrder, error) {
	invalid := func(format string, args ...any) (repo.NewOrder, error) {
		return repo.NewOrder{}, fmt.Errorf("%w: "+format, append([]any{ErrPayloadInvalid}, args...)...)
	}

	buyer := strings.TrimSpace(p.BuyerRef)
	if buyer == "" {
		return invalid("buyer_ref is required")
	}
	if len(buyer) > maxRefLength {
		return invalid("buyer_ref longer than %d bytes", maxRefLength)
	}
	if len(p.LineItems) == 0 {
		return invalid("at least one line item is required")
	}
	if len(p.LineItems) > MaxLineItems {
		return invalid("more than %d line items", MaxLineItems)
	}

	code := strings.ToUpper(strings.TrimSpace(p.Currency))
	if code == "" {
		code = s.defaultCurrency()
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return invalid("currency %q is not an ISO 4217 code", p.Currency)
	}

	items := make([]domain.LineItem, 0, len(p.LineItems))
	var total int64
	for i, li := range p.LineItems {
		ref := strings.TrimSpace(li.ProductRef)
		switch {
		case ref == "":
			return invalid("line_items[%d].product_ref is required", i)
		case len(ref) > maxRefLength:
			return invalid("line_items[%d].product_ref longer than %d bytes", i, maxRefLength)
		case li.Quantity <= 0:
			return invalid("line_items[%d].quantity must be > 0", i)
		case li.UnitPrice < 0:
			return invalid("line_items[%d].unit_price must be >= 0", i)
		}
		if li.UnitPrice > 0 && int64(li.Quantity) > math.MaxInt64/li.UnitPrice {
			return invalid("line_items[%d] subtotal overflows", i)
		}
		sub := int64(li.Quantity) * li.UnitPrice
		if total > math.MaxInt64-sub {
			return invalid("order total overflows")
		}
		total += sub
		items = append(items, domain.LineItem{ProductRef: ref, Quantity: li.Quantity, UnitPrice: li.UnitPrice})
	}
	if total <= 0 {
		return invalid("order total must be > 0")
	}
	if p.AmountTotal != 0 && p.AmountTotal != total {
		return invalid("amount_total %d does not match line items total %d", p.AmountTotal, total)
	}

	return repo.NewOrder{
		IdempotencyKey: key,
		BuyerRef:       buyer,
		Currency:       unit.String(),
		AmountTotal:    total,
		LineItems:      items,
	}, nil
}

// release marks rec failed so the key can be retried. It runs even when ctx
// was canceled, otherwise a canceled request would pin the key until expiry.
func (s *CheckoutService) release(ctx context.Context, rec *domain.Idempotency) {
	ctx = context.WithoutCancel(ctx)
	if err := repo.FailIdempotency(ctx, s.DB, rec.Key, rec.Token, s.now()); err != nil && !errors.Is(err, repo.ErrConflict) {
		log.Error().Err(err).Msg("checkout: could not release idempotency claim")
	}
}

func (s *CheckoutService) storageErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	log.Error().Err(err).Str("op", op).Msg("checkout: storage failure")
	return fmt.Errorf("%w: %s", ErrCreationFailed, op)
}

// wait blocks until the claimant of key resolves it, d elapses or ctx is
// done.
func (s *CheckoutService) wait(ctx context.Context, key string, d time.Duration) error {
	s.mu.Lock()
	if s.waiters == nil {
		s.waiters = make(map[string]chan struct{})
	}
	ch, ok := s.waiters[key]
	if !ok {
		ch = make(chan struct{})
		s.waiters[key] = ch
	}
	s.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notify wakes every waiter on key.
func (s *CheckoutService) notify(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.waiters[key]; ok {
		close(ch)
		delete(s.waiters, key)
	}
}

// forget drops the wake-up channel of a key claimed elsewhere. Remaining
// waiters fall back to polling.
func (s *CheckoutService) forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, key)
}

func (s *CheckoutService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *CheckoutService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTTL
}

func (s *CheckoutService) waitTimeout() time.Duration {
	if s.WaitTimeout > 0 {
		return s.WaitTimeout
	}
	return DefaultWait
}

func (s *CheckoutService) pollInterval() time.Duration {
	if s.PollInterval > 0 {
		return s.PollInterval
	}
	return DefaultPoll
}

func (s *CheckoutService) defaultCurrency() string {
	if s.DefaultCurrency != "" {
		return strings.ToUpper(s.DefaultCurrency)
	}
	return fallbackCurrency
}

func submitOutcome(sub *Submission, err error) string {
	switch {
	case err == nil && sub.Replayed:
		return "replayed"
	case err == nil:
		return "created"
	case errors.Is(err, ErrPayloadInvalid):
		return "invalid"
	case errors.Is(err, ErrDuplicateInFlight):
		return "in_flight"
	default:
		return "failed"
	}
}
