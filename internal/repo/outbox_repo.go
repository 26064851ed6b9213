// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the transactional outbox: events are
// inserted in the same transaction as the state change they describe and
// later read, marked and purged by the relay.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-core/internal/domain"
)

// InsertEvent serializes payload to JSON and appends an unpublished event for
// orderID. Call it with the transaction handle of the change it describes.
func InsertEvent(ctx context.Context, db *gorm.DB, orderID, eventType string, payload any, now time.Time) (*domain.OrderEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	ev := &domain.OrderEvent{
		EventID:   uuid.NewString(),
		OrderID:   orderID,
		Type:      eventType,
		Payload:   string(body),
		CreatedAt: now.UTC(),
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

// ListUnpublishedEvents returns up to limit unpublished events in insertion
// order.
func ListUnpublishedEvents(ctx context.Context, db *gorm.DB, limit int) ([]domain.OrderEvent, error) {
	var out []domain.OrderEvent
	q := db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// MarkEventsPublished stamps published_at on the given events. Events that
// were already marked are left untouched.
func MarkEventsPublished(ctx context.Context, db *gorm.DB, ids []uint64, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.OrderEvent{}).
		Where("id IN ? AND published_at IS NULL", ids).
		Update("published_at", now.UTC())
	return res.RowsAffected, res.Error
}

// PurgePublishedEvents deletes events published before cutoff.
func PurgePublishedEvents(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", cutoff.UTC()).
		Delete(&domain.OrderEvent{})
	return res.RowsAffected, res.Error
}
