// Package domain defines the persistence models of the order core: orders
// with their line items and status history, idempotency records owned by the
// checkout guard, and outbox events. These types are mapped with GORM and are
// shared by the repository and service layers.
package domain

import "time"

// Order is the central entity. ID, Number, IdempotencyKey, LineItems and
// AmountTotal are fixed at creation. Status, Version and UpdatedAt change only
// through an accepted status transition, which also appends to History.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Number: human-facing order number, unique.
//   - IdempotencyKey: checkout key that produced the order, unique. This is
//     the storage-level guarantee that one key never yields two orders.
//   - BuyerRef: opaque reference to the buyer supplied by the caller.
//   - Status: current lifecycle state.
//   - Currency / AmountTotal: ISO 4217 code and total in minor units.
//   - Version: starts at 1 and increments on every transition; it guards the
//     compare-and-swap write and equals len(History).
type Order struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	Number         string    `json:"number"          gorm:"type:varchar(32);not null;uniqueIndex:ux_orders_number"`
	IdempotencyKey string    `json:"-"               gorm:"type:varchar(200);not null;uniqueIndex:ux_orders_idempotency_key"`
	BuyerRef       string    `json:"buyer_ref"       gorm:"type:varchar(128);not null;index:idx_orders_buyer"`
	Status         Status    `json:"status"          gorm:"type:varchar(16);not null;index:idx_orders_status"`
	Currency       string    `json:"currency"        gorm:"type:char(3);not null"`
	AmountTotal    int64     `json:"amount_total"    gorm:"not null"`
	Version        int64     `json:"version"         gorm:"not null;default:1"`
	CreatedAt      time.Time `json:"created_at"      gorm:"not null"`
	UpdatedAt      time.Time `json:"updated_at"      gorm:"not null"`

	LineItems []LineItem    `json:"line_items"     gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	History   []StatusEntry `json:"status_history" gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// LineItem is one position of an order. Quantity and price never change after
// creation; a different basket is a different order.
type LineItem struct {
	OrderID    string `json:"-"           gorm:"type:char(36);primaryKey"`
	Position   int    `json:"position"    gorm:"primaryKey;autoIncrement:false"`
	ProductRef string `json:"product_ref" gorm:"type:varchar(128);not null"`
	Quantity   int    `json:"quantity"    gorm:"not null;check:quantity > 0"`
	UnitPrice  int64  `json:"unit_price"  gorm:"not null;check:unit_price >= 0"`
}

// TableName returns the database table name for LineItem.
func (LineItem) TableName() string { return "order_line_items" }

// Subtotal is quantity times unit price in minor units.
func (li LineItem) Subtotal() int64 { return int64(li.Quantity) * li.UnitPrice }

// StatusEntry is one append-only history record. Seq is the order version
// that produced it, so (OrderID, Seq) being the primary key rejects a second
// writer racing for the same position.
type StatusEntry struct {
	OrderID string    `json:"-"      gorm:"type:char(36);primaryKey"`
	Seq     int64     `json:"seq"    gorm:"primaryKey;autoIncrement:false"`
	Status  Status    `json:"status" gorm:"type:varchar(16);not null"`
	At      time.Time `json:"at"     gorm:"not null"`
}

// TableName returns the database table name for StatusEntry.
func (StatusEntry) TableName() string { return "order_status_history" }
