// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the Idempotency
// model that backs the checkout guard.
//
// A record is claimed with a plain INSERT: the unique index on key makes the
// claim an atomic insert-if-absent across goroutines and processes. Every
// later write is conditional on the claim token, so only the current
// claimant can complete or fail a record.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-core/internal/domain"
)

// ErrDuplicate indicates that a row with the same unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation reports whether err is a unique/primary key violation.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "constraint failed: primary key") ||
		strings.Contains(low, "duplicate key value")
}

// ClaimIdempotency inserts an in_flight record for key with a fresh claim
// token. It returns ErrDuplicate when a record for key already exists.
func ClaimIdempotency(ctx context.Context, db *gorm.DB, key string, ttl time.Duration, now time.Time) (*domain.Idempotency, error) {
	now = now.UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		Key:       key,
		State:     domain.IdempotencyInFlight,
		Token:     uuid.NewString(),
		Attempts:  1,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// GetIdempotency returns the record for key regardless of its state or
// expiry, or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, key string) (*domain.Idempotency, error) {
	var rec domain.Idempotency
	err := db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ReclaimIdempotency takes over a failed or abandoned (expired in_flight)
// record. The update is conditional on the token observed by the caller and
// on the record still being reclaimable at now, so of several concurrent
// reclaimers exactly one wins; the others get ErrConflict.
func ReclaimIdempotency(ctx context.Context, db *gorm.DB, key, observedToken string, ttl time.Duration, now time.Time) (*domain.Idempotency, error) {
	now = now.UTC()
	token := uuid.NewString()
	res := db.WithContext(ctx).
		Model(&domain.Idempotency{}).
		Where("key = ? AND token = ?", key, observedToken).
		Where("(state = ? OR (state = ? AND expires_at <= ?))",
			domain.IdempotencyFailed, domain.IdempotencyInFlight, now).
		Updates(map[string]any{
			"state":      domain.IdempotencyInFlight,
			"token":      token,
			"order_id":   nil,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
			"expires_at": now.Add(ttl),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrConflict
	}
	return GetIdempotency(ctx, db, key)
}

// CompleteIdempotency marks the claim identified by (key, token) completed
// with orderID. It returns ErrConflict when the caller no longer owns the
// claim.
func CompleteIdempotency(ctx context.Context, db *gorm.DB, key, token, orderID string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Idempotency{}).
		Where("key = ? AND token = ? AND state = ?", key, token, domain.IdempotencyInFlight).
		Updates(map[string]any{
			"state":      domain.IdempotencyCompleted,
			"order_id":   orderID,
			"updated_at": now.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// FailIdempotency marks the claim identified by (key, token) failed so the
// key can be claimed again. It returns ErrConflict when the caller no longer
// owns the claim.
func FailIdempotency(ctx context.Context, db *gorm.DB, key, token string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Idempotency{}).
		Where("key = ? AND token = ? AND state = ?", key, token, domain.IdempotencyInFlight).
		Updates(map[string]any{
			"state":      domain.IdempotencyFailed,
			"updated_at": now.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// ExpireAbandonedIdempotency flips in_flight records whose TTL has passed to
// failed and returns how many were flipped.
func ExpireAbandonedIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	now = now.UTC()
	res := db.WithContext(ctx).
		Model(&domain.Idempotency{}).
		Where("state = ? AND expires_at <= ?", domain.IdempotencyInFlight, now).
		Updates(map[string]any{
			"state":      domain.IdempotencyFailed,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// PurgeIdempotency deletes resolved records whose TTL has passed. In-flight
// records are never deleted here.
func PurgeIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ? AND state <> ?", now.UTC(), domain.IdempotencyInFlight).
		Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
