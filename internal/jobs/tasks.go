package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-core/internal/events"
	"github.com/tbourn/go-order-core/internal/repo"
)

// OutboxJob drains the outbox until a run publishes nothing or fails.
func OutboxJob(relay *events.Relay) Func {
	return func(ctx context.Context) error {
		for ctx.Err() == nil {
			n, err := relay.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("outbox relay: %w", err)
			}
			if n == 0 {
				return nil
			}
		}
		return ctx.Err()
	}
}

// PurgeJob releases abandoned idempotency claims, deletes expired records and
// removes events published more than retention ago. now may be nil.
func PurgeJob(db *gorm.DB, retention time.Duration, now func() time.Time) Func {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return func(ctx context.Context) error {
		t := now()

		expired, err := repo.ExpireAbandonedIdempotency(ctx, db, t)
		if err != nil {
			return fmt.Errorf("expire idempotency: %w", err)
		}
		purged, err := repo.PurgeIdempotency(ctx, db, t)
		if err != nil {
			return fmt.Errorf("purge idempotency: %w", err)
		}
		idempotencyPurged.WithLabelValues("expired").Add(float64(expired))
		idempotencyPurged.WithLabelValues("deleted").Add(float64(purged))

		var pruned int64
		if retention > 0 {
			pruned, err = repo.PurgePublishedEvents(ctx, db, t.Add(-retention))
			if err != nil {
				return fmt.Errorf("purge events: %w", err)
			}
		}

		if expired+purged+pruned > 0 {
			log.Info().
				Int64("claims_expired", expired).
				Int64("records_purged", purged).
				Int64("events_purged", pruned).
				Msg("purge complete")
		}
		return nil
	}
}
