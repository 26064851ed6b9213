package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// envelopeRouter mounts h at /x behind a stub request-id and logger middleware.
func envelopeRouter(logs *bytes.Buffer, h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	lg := zerolog.New(logs)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-1")
		c.Set("logger", &lg)
		c.Next()
	})
	r.GET("/x", h)
	return r
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, w.Body.String())
	}
	return er
}

func TestFail_ClientErrorNotLogged(t *testing.T) {
	var logs bytes.Buffer
	r := envelopeRouter(&logs, func(c *gin.Context) {
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidTransition, "paid -> delivered")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", w.Code)
	}
	er := decodeEnvelope(t, w)
	if er.RequestID != "rid-1" || er.Code != ErrCodeInvalidTransition || er.Message != "paid -> delivered" {
		t.Fatalf("envelope=%+v", er)
	}
	if w.Header().Get("Retry-After") != "" {
		t.Fatal("non-retryable error must not carry Retry-After")
	}
	if logs.Len() != 0 {
		t.Fatalf("4xx should not be logged here: %s", logs.String())
	}
}

func TestFail_ServerErrorLogged(t *testing.T) {
	var logs bytes.Buffer
	r := envelopeRouter(&logs, func(c *gin.Context) {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeEnvelope(t, w); er.Code != ErrCodeInternal {
		t.Fatalf("envelope=%+v", er)
	}
	out := logs.String()
	if !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, `"code":"internal_error"`) {
		t.Fatalf("missing error log: %s", out)
	}
}

func TestFailRetry_SetsRetryAfter(t *testing.T) {
	var logs bytes.Buffer
	r := envelopeRouter(&logs, func(c *gin.Context) {
		failRetry(c, http.StatusServiceUnavailable, ErrCodeOrderBusy, "order busy")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusServiceUnavailable || w.Header().Get("Retry-After") != retryAfterSeconds {
		t.Fatalf("status=%d retry-after=%q", w.Code, w.Header().Get("Retry-After"))
	}
	if er := decodeEnvelope(t, w); er.Code != ErrCodeOrderBusy {
		t.Fatalf("envelope=%+v", er)
	}
}

func TestOkVersioned_AndNotModified(t *testing.T) {
	const etag = `W/"order:o-1:3"`

	var logs bytes.Buffer
	r := envelopeRouter(&logs, func(c *gin.Context) {
		if c.GetHeader("If-None-Match") == etag {
			notModified(c, etag)
			return
		}
		okVersioned(c, etag, gin.H{"order_id": "o-1", "version": 3})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusOK || w.Header().Get("ETag") != etag || w.Header().Get("Cache-Control") != orderCacheControl {
		t.Fatalf("status=%d headers=%v", w.Code, w.Header())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["order_id"] != "o-1" {
		t.Fatalf("body=%s err=%v", w.Body.String(), err)
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified || w.Body.Len() != 0 {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") != etag {
		t.Fatalf("304 must repeat the etag, got %q", w.Header().Get("ETag"))
	}
}

func TestFail_Exported(t *testing.T) {
	var logs bytes.Buffer
	r := envelopeRouter(&logs, func(c *gin.Context) {
		Fail(c, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeEnvelope(t, w); er.Code != ErrCodeMethodNotAllowed || er.RequestID != "rid-1" {
		t.Fatalf("envelope=%+v", er)
	}
}
