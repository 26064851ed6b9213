// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small metadata queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-order-core/internal/domain"
)

// OrderStats returns the version and last update time of an order without
// loading its line items or history. Every accepted transition bumps both, so
// the pair identifies a representation of the order.
//
// Return values:
//   - version:   current compare-and-swap version
//   - updatedAt: time of the last accepted transition (or creation)
//   - err:       ErrNotFound if the order does not exist, or a database error
func OrderStats(ctx context.Context, db *gorm.DB, id string) (version int64, updatedAt time.Time, err error) {
	var row struct {
		Version   int64
		UpdatedAt time.Time
	}
	err = db.WithContext(ctx).
		Model(&domain.Order{}).
		Select("version", "updated_at").
		Where("id = ?", id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, time.Time{}, ErrNotFound
	}
	if err != nil {
		return 0, time.Time{}, err
	}
	return row.Version, row.UpdatedAt, nil
}
