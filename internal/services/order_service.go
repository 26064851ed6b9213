// Package services – OrderService
//
// This file implements the read side of the order core: OrderSnapshot, the
// representation returned by GetOrder and by accepted transitions, and the
// cheap ETag lookup used for conditional GETs.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/currency"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-core/internal/domain"
	"github.com/tbourn/go-order-core/internal/progress"
	"github.com/tbourn/go-order-core/internal/repo"
)

// OrderSnapshot is the externally visible state of an order.
type OrderSnapshot struct {
	OrderID       string         `json:"order_id"`
	OrderNumber   string         `json:"order_number"`
	BuyerRef      string         `json:"buyer_ref"`
	Status        domain.Status  `json:"status"`
	Rank          int            `json:"rank"`
	Progress      progress.View  `json:"progress"`
	StatusHistory []HistoryEntry `json:"status_history"`
	LineItems     []LineItemView `json:"line_items"`
	AmountTotal   int64          `json:"amount_total"`
	AmountDisplay string         `json:"amount_display"`
	Currency      string         `json:"currency"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// HistoryEntry is one status history record.
type HistoryEntry struct {
	Seq    int64         `json:"seq"`
	Status domain.Status `json:"status"`
	At     time.Time     `json:"at"`
}

// LineItemView is one line item with its subtotal.
type LineItemView struct {
	Position   int    `json:"position"`
	ProductRef string `json:"product_ref"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	Subtotal   int64  `json:"subtotal"`
}

// OrderService serves order reads.
type OrderService struct {
	DB *gorm.DB
}

// Get returns the snapshot of order id, or ErrOrderNotFound.
func (s *OrderService) Get(ctx context.Context, id string) (*OrderSnapshot, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("order.id", id)),
	)
	defer span.End()

	o, err := repo.GetOrder(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return NewSnapshot(o), nil
}

// ETag returns the weak entity tag of the current representation of order
// id without loading its associations.
func (s *OrderService) ETag(ctx context.Context, id string) (string, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "ETag",
		trace.WithAttributes(attribute.String("order.id", id)),
	)
	defer span.End()

	version, _, err := repo.OrderStats(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return OrderETag(id, version), nil
}

// OrderETag formats the weak ETag of an order at version.
func OrderETag(id string, version int64) string {
	return fmt.Sprintf(`W/"order:%s:%d"`, id, version)
}

// NewSnapshot converts a loaded order (with associations) into its snapshot.
func NewSnapshot(o *domain.Order) *OrderSnapshot {
	history := make([]HistoryEntry, len(o.History))
	for i, h := range o.History {
		history[i] = HistoryEntry{Seq: h.Seq, Status: h.Status, At: h.At}
	}
	items := make([]LineItemView, len(o.LineItems))
	for i, li := range o.LineItems {
		items[i] = LineItemView{
			Position:   li.Position,
			ProductRef: li.ProductRef,
			Quantity:   li.Quantity,
			UnitPrice:  li.UnitPrice,
			Subtotal:   li.Subtotal(),
		}
	}
	view := progress.Project(o.Status)
	return &OrderSnapshot{
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		BuyerRef:      o.BuyerRef,
		Status:        o.Status,
		Rank:          view.Rank,
		Progress:      view,
		StatusHistory: history,
		LineItems:     items,
		AmountTotal:   o.AmountTotal,
		AmountDisplay: formatAmount(o.AmountTotal, o.Currency),
		Currency:      o.Currency,
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// formatAmount renders minor units with the currency's standard number of
// decimals (2 for EUR, 0 for JPY). Unknown codes fall back to 2.
func formatAmount(minor int64, code string) string {
	scale := 2
	if unit, err := currency.ParseISO(code); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
	}
	return decimal.New(minor, -int32(scale)).StringFixed(int32(scale))
}
