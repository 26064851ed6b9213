// Order HTTP handlers.
//
// This file exposes the read and lifecycle endpoints of an order:
//   - GET  /orders/{id}              (snapshot, weak ETag, 304)
//   - GET  /orders/{id}/progress     (progress projection)
//   - POST /orders/{id}/transitions  (status change)
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-order-core/internal/domain"
	"github.com/tbourn/go-order-core/internal/progress"
	"github.com/tbourn/go-order-core/internal/services"
)

// maxOrderIDLength bounds the :id path parameter.
const maxOrderIDLength = 64

//
// DTOs
//

// TransitionRequest asks for a status change. ExpectedStatus turns the call
// into a compare-and-set: it fails with stale_state when the order is no
// longer in that status.
type TransitionRequest struct {
	TargetStatus   string `json:"target_status" binding:"required" example:"paid"`
	ExpectedStatus string `json:"expected_status,omitempty" example:"pending"`
}

//
// Helpers
//

// orderID returns the trimmed :id parameter, or fails the request.
func orderID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" || len(id) > maxOrderIDLength {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid order id")
		return "", false
	}
	return id, true
}

// etagMatches reports whether an If-None-Match header value matches etag.
// "*" matches anything; a list of tags is accepted.
func etagMatches(header, etag string) bool {
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || tag == etag {
			return true
		}
	}
	return false
}

//
// Handlers
//

// GetOrder godoc
// @ID          getOrder
// @Summary     Get an order
// @Description Returns the order snapshot with status history, line items and progress.
// @Description Supports a weak ETag (W/"order:<id>:<version>") via If-None-Match and may return 304.
// @Tags        Orders
// @Produce     json
//
// @Param       id             path    string  true  "Order ID"                    format(uuid)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/"order:0f8fad5b-d9cb-469f-a165-70867728950e:3")
//
// @Success     200  {object}  services.OrderSnapshot
// @Header      200  {string}  ETag           "Weak ETag of the current version"
// @Header      200  {string}  Cache-Control  "private, no-cache"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /orders/{id} [get]
func (h *Handlers) GetOrder(c *gin.Context) {
	id, valid := orderID(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()

	// Cheap version lookup first; the full load only runs on a miss.
	if inm := c.GetHeader("If-None-Match"); inm != "" {
		etag, err := h.orders.ETag(ctx, id)
		if err != nil {
			failService(c, err)
			return
		}
		if etagMatches(inm, etag) {
			notModified(c, etag)
			return
		}
	}

	snap, err := h.orders.Get(ctx, id)
	if err != nil {
		failService(c, err)
		return
	}
	okVersioned(c, services.OrderETag(snap.OrderID, snap.Version), snap)
}

// GetProgress godoc
// @ID          getOrderProgress
// @Summary     Get order progress
// @Description Returns the progress projection of the order: rank (0..3), percent, label and steps.
// @Tags        Orders
// @Produce     json
//
// @Param       id  path  string  true  "Order ID"  format(uuid)
//
// @Success     200  {object}  progress.View
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /orders/{id}/progress [get]
func (h *Handlers) GetProgress(c *gin.Context) {
	id, valid := orderID(c)
	if !valid {
		return
	}
	snap, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, progress.Project(snap.Status))
}

// TransitionOrder godoc
// @ID          transitionOrder
// @Summary     Change the status of an order
// @Description Applies one edge of the status lifecycle:
// @Description pending → processing | paid | canceled, processing → paid | canceled, paid → shipped, shipped → delivered.
// @Description Repeating a transition is not a no-op: it fails like any other illegal edge.
// @Tags        Orders
// @Accept      json
// @Produce     json
//
// @Param       id    path  string                      true  "Order ID"  format(uuid)
// @Param       body  body  handlers.TransitionRequest  true  "Target and optional expected status"
//
// @Success     200  {object}  services.OrderSnapshot
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Stale state"
// @Failure     422  {object}  handlers.ErrorResponse  "Invalid transition or terminal state"
// @Failure     503  {object}  handlers.ErrorResponse  "Order busy (retry)"
// @Router      /orders/{id}/transitions [post]
func (h *Handlers) TransitionOrder(c *gin.Context) {
	id, valid := orderID(c)
	if !valid {
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "target_status required")
		return
	}

	var expected *domain.Status
	if raw := strings.TrimSpace(req.ExpectedStatus); raw != "" {
		s, known := domain.ParseStatus(strings.ToLower(raw))
		if !known {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("unknown expected_status %q", raw))
			return
		}
		expected = &s
	}

	// Unknown targets are passed through; the engine rejects them as
	// invalid_transition.
	target := domain.Status(strings.ToLower(strings.TrimSpace(req.TargetStatus)))

	snap, err := h.transitions.Transition(c.Request.Context(), id, target, expected)
	if err != nil {
		failService(c, err)
		return
	}
	c.Header("ETag", services.OrderETag(snap.OrderID, snap.Version))
	ok(c, http.StatusOK, snap)
}
