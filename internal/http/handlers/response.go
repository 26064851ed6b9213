package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-order-core/internal/http/middleware"
)

const (
	// retryAfterSeconds is the Retry-After hint sent with retryable errors.
	retryAfterSeconds = "1"

	// orderCacheControl lets clients cache order reads but forces revalidation
	// with If-None-Match.
	orderCacheControl = "private, no-cache"
)

// ErrorResponse is the error envelope of every endpoint. Code is one of the
// ErrCode* constants; RequestID echoes X-Request-ID.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"stale_state"`
	Message   string `json:"message" example:"stale order state: expected pending, order is paid"`
}

// fail aborts with the error envelope. Server-side failures are logged on the
// request logger; client errors are left to the access log.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("path", c.FullPath()).
			Msg(msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// failRetry is fail for conditions the client may retry shortly, such as a
// busy order lock or a checkout still in flight.
func failRetry(c *gin.Context, status int, code, msg string) {
	c.Header("Retry-After", retryAfterSeconds)
	fail(c, status, code, msg)
}

// Fail writes the error envelope from outside the package (router fallbacks).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// okVersioned writes an order representation together with its validators.
func okVersioned(c *gin.Context, etag string, body any) {
	c.Header("ETag", etag)
	c.Header("Cache-Control", orderCacheControl)
	c.JSON(http.StatusOK, body)
}

// notModified answers a conditional read whose etag still matches.
func notModified(c *gin.Context, etag string) {
	c.Header("ETag", etag)
	c.Header("Cache-Control", orderCacheControl)
	c.Status(http.StatusNotModified)
}
