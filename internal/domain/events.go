package domain

import "time"

// Event types written to the outbox.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is an outbox row. It is inserted in the same transaction as the
// state change it describes and published asynchronously by the outbox relay.
// ID is auto-incremented and defines publication order.
type OrderEvent struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement"`
	EventID     string     `gorm:"type:char(36);not null;uniqueIndex"`
	OrderID     string     `gorm:"type:char(36);not null;index"`
	Type        string     `gorm:"type:varchar(64);not null"`
	Payload     string     `gorm:"type:text;not null"`
	CreatedAt   time.Time  `gorm:"not null"`
	PublishedAt *time.Time `gorm:"index"`
}

// TableName returns the database table name for OrderEvent.
func (OrderEvent) TableName() string { return "order_events" }

// StatusChange is the payload of an order.status_changed event.
type StatusChange struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	Version     int64     `json:"version"`
	At          time.Time `json:"at"`
}

// OrderCreated is the payload of an order.created event. Downstream payment
// intent creation keys off this event.
type OrderCreated struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	BuyerRef    string    `json:"buyer_ref"`
	Currency    string    `json:"currency"`
	AmountTotal int64     `json:"amount_total"`
	At          time.Time `json:"at"`
}
