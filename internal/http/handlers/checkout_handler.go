// Checkout HTTP handler.
//
// POST /checkout creates an order from a checkout payload. The
// Idempotency-Key header is mandatory: resubmitting the same key returns the
// order of the first submission (200, Idempotency-Replayed: true) instead of
// creating another one.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-order-core/internal/http/middleware"
	"github.com/tbourn/go-order-core/internal/services"
)

//
// DTOs
//

// CheckoutRequest is the JSON payload of a checkout submission. Amounts are
// integers in minor units (cents for EUR).
type CheckoutRequest struct {
	BuyerRef string `json:"buyer_ref" example:"buyer-42"`
	// Currency is an ISO 4217 code; the configured default applies when empty.
	Currency string `json:"currency,omitempty" example:"EUR"`
	// AmountTotal is optional; when set it must equal the sum of the lines.
	AmountTotal int64             `json:"amount_total,omitempty" example:"3250"`
	LineItems   []LineItemRequest `json:"line_items"`
}

// LineItemRequest is one requested line.
type LineItemRequest struct {
	ProductRef string `json:"product_ref" example:"sku-123"`
	Quantity   int    `json:"quantity" example:"2"`
	UnitPrice  int64  `json:"unit_price" example:"1500"`
}

// CheckoutResponse identifies the order behind a submission.
type CheckoutResponse struct {
	OrderID  string `json:"order_id" example:"0f8fad5b-d9cb-469f-a165-70867728950e"`
	Replayed bool   `json:"replayed" example:"false"`
}

func (r CheckoutRequest) payload() services.CheckoutPayload {
	p := services.CheckoutPayload{
		BuyerRef:    r.BuyerRef,
		Currency:    r.Currency,
		AmountTotal: r.AmountTotal,
		LineItems:   make([]services.LineItemInput, len(r.LineItems)),
	}
	for i, li := range r.LineItems {
		p.LineItems[i] = services.LineItemInput{
			ProductRef: li.ProductRef,
			Quantity:   li.Quantity,
			UnitPrice:  li.UnitPrice,
		}
	}
	return p
}

// SubmitCheckout godoc
// @ID          submitCheckout
// @Summary     Submit a checkout
// @Description Creates a pending order. Submissions are deduplicated by the Idempotency-Key header:
// @Description a repeated key returns the original order with 200 and Idempotency-Replayed: true,
// @Description whatever the new payload says.
// @Tags        Checkout
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  true  "Client-chosen submission key (<=200 chars, [A-Za-z0-9._~:-])"  example(cart-9f2c-attempt)
// @Param       body             body    handlers.CheckoutRequest  true  "Checkout payload"
//
// @Success     201  {object}  handlers.CheckoutResponse  "Order created"
// @Success     200  {object}  handlers.CheckoutResponse  "Replay of an earlier submission"
// @Header      200  {string}  Idempotency-Replayed       "true"
// @Failure     400  {object}  handlers.ErrorResponse     "Bad key or payload"
// @Failure     409  {object}  handlers.ErrorResponse     "Same key still in flight (retry)"
// @Failure     429  {object}  handlers.ErrorResponse     "Rate limited"
// @Failure     503  {object}  handlers.ErrorResponse     "Creation failed (retry with the same key)"
// @Router      /checkout [post]
func (h *Handlers) SubmitCheckout(c *gin.Context) {
	key, found := middleware.GetIdempotencyKey(c)
	if !found {
		key = strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
	}
	if key == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, middleware.HeaderIdempotencyKey+" header is required")
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	sub, err := h.checkout.Submit(c.Request.Context(), key, req.payload())
	if err != nil {
		failService(c, err)
		return
	}

	if sub.Replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
		ok(c, http.StatusOK, CheckoutResponse{OrderID: sub.OrderID, Replayed: true})
		return
	}
	ok(c, http.StatusCreated, CheckoutResponse{OrderID: sub.OrderID})
}
