// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Order
// aggregate: the order row, its line items and its status history.
//
// All functions accept a *gorm.DB handle, so they work the same on the root
// handle and inside a transaction. They follow the "thin repository"
// approach: no business rules, only persistence and query composition. The
// transition table lives in the domain package and is enforced by the
// services layer before ApplyTransition is called.
//
// Error semantics:
//   - A missing order returns ErrNotFound.
//   - A unique violation (idempotency key or order number) returns
//     ErrDuplicate.
//   - A lost compare-and-swap on (id, status, version) returns ErrConflict.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-order-core/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrConflict is returned when a conditional write matched no row because a
// concurrent writer changed it first.
var ErrConflict = errors.New("conflict")

// NewOrder carries the already validated input of CreateOrder.
type NewOrder struct {
	IdempotencyKey string
	BuyerRef       string
	Currency       string
	AmountTotal    int64
	LineItems      []domain.LineItem
}

// CreateOrder inserts a pending order at version 1 together with its line
// items and the first status history entry (pending, seq 1). The ID and the
// human-facing number are generated here.
func CreateOrder(ctx context.Context, db *gorm.DB, in NewOrder, now time.Time) (*domain.Order, error) {
	now = now.UTC()
	id := uuid.NewString()

	items := make([]domain.LineItem, len(in.LineItems))
	for i, li := range in.LineItems {
		li.OrderID = id
		li.Position = i
		items[i] = li
	}

	o := &domain.Order{
		ID:             id,
		Number:         newOrderNumber(id, now),
		IdempotencyKey: in.IdempotencyKey,
		BuyerRef:       in.BuyerRef,
		Status:         domain.StatusPending,
		Currency:       in.Currency,
		AmountTotal:    in.AmountTotal,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
		LineItems:      items,
		History: []domain.StatusEntry{
			{OrderID: id, Seq: 1, Status: domain.StatusPending, At: now},
		},
	}
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return o, nil
}

// GetOrder fetches an order with its line items (by position) and status
// history (by seq).
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Preload("LineItems", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("History", func(tx *gorm.DB) *gorm.DB { return tx.Order("seq ASC") }).
		Where("id = ?", id).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderForUpdate reads the order row without associations. On Postgres
// the row is locked (SELECT ... FOR UPDATE) until the surrounding
// transaction ends; SQLite serializes writers on its own.
func GetOrderForUpdate(ctx context.Context, tx *gorm.DB, id string) (*domain.Order, error) {
	q := tx.WithContext(ctx)
	if isPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var o domain.Order
	err := q.Where("id = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderByIdempotencyKey fetches the order created under key.
func GetOrderByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).Where("idempotency_key = ?", key).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ApplyTransition moves o to status `to` with a compare-and-swap on the
// (id, status, version) that o was read with, then appends the history entry
// whose seq is the new version. On success o is updated in place and the new
// entry is returned. If another writer got there first, nothing is written
// and ErrConflict is returned.
//
// Legality of the edge is the caller's responsibility.
func ApplyTransition(ctx context.Context, tx *gorm.DB, o *domain.Order, to domain.Status, now time.Time) (*domain.StatusEntry, error) {
	now = now.UTC()
	next := o.Version + 1

	res := tx.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ? AND version = ?", o.ID, o.Status, o.Version).
		Updates(map[string]any{
			"status":     to,
			"version":    next,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrConflict
	}

	entry := &domain.StatusEntry{OrderID: o.ID, Seq: next, Status: to, At: now}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}

	o.Status = to
	o.Version = next
	o.UpdatedAt = now
	o.History = append(o.History, *entry)
	return entry, nil
}

// newOrderNumber renders ORD-YYYYMMDD-XXXXXXXXXX from the creation date and
// the first ten hex digits of the order id.
func newOrderNumber(id string, now time.Time) string {
	hex := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(hex) > 10 {
		hex = hex[:10]
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), hex)
}
