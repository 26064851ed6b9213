package events

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-core/internal/repo"
)

// DefaultBatchSize bounds how many events one RunOnce drains.
const DefaultBatchSize = 100

var (
	eventsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events accepted by the publisher.",
	})
	publishFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_publish_failures_total",
		Help: "Outbox relay runs that failed to publish or mark a batch.",
	})
)

func init() {
	prometheus.MustRegister(eventsPublished, publishFailures)
}

// Relay moves events from the outbox to a Publisher.
type Relay struct {
	DB        *gorm.DB
	Publisher Publisher
	BatchSize int
	Now       func() time.Time
}

// RunOnce publishes one batch of unpublished events and marks the accepted
// prefix as published. It returns how many events were marked.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("events/Relay").Start(ctx, "RunOnce")
	defer span.End()

	size := r.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	evs, err := repo.ListUnpublishedEvents(ctx, r.DB, size)
	if err != nil {
		publishFailures.Inc()
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	if len(evs) == 0 {
		return 0, nil
	}

	n, pubErr := r.Publisher.Publish(ctx, evs)
	if n > len(evs) {
		n = len(evs)
	}
	marked := 0
	if n > 0 {
		ids := make([]uint64, n)
		for i := 0; i < n; i++ {
			ids[i] = evs[i].ID
		}
		// Accepted events are marked even when ctx is already canceled.
		rows, err := repo.MarkEventsPublished(context.WithoutCancel(ctx), r.DB, ids, r.now())
		if err != nil {
			publishFailures.Inc()
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
		marked = int(rows)
		eventsPublished.Add(float64(marked))
	}
	span.SetAttributes(
		attribute.Int("outbox.batch", len(evs)),
		attribute.Int("outbox.published", marked),
	)
	if pubErr != nil {
		publishFailures.Inc()
		span.SetStatus(codes.Error, pubErr.Error())
		return marked, pubErr
	}
	return marked, nil
}

func (r *Relay) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}
