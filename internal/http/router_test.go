package httpapi

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-order-core/internal/config"
	"github.com/tbourn/go-order-core/internal/http/middleware"
	"github.com/tbourn/go-order-core/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db = db.Session(&gorm.Session{Logger: logger.Default.LogMode(logger.Silent)})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
		Checkout: config.CheckoutConfig{
			IdempotencyTTL:  time.Hour,
			WaitTimeout:     time.Second,
			PollInterval:    10 * time.Millisecond,
			DefaultCurrency: "EUR",
		},
		TransitionLockTimeout: time.Second,
	}
}

func newRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), cfg)
	return r
}

func serve(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const checkoutJSON = `{"buyer_ref":"buyer-1","currency":"EUR","line_items":[{"product_ref":"sku-1","quantity":2,"unit_price":1500}]}`

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r := newRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected default no-store, got %q", got)
	}

	w = serve(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	if w = serve(r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if w = serve(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
	if w = serve(r, http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"http://example.com"}
	r := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
	exposed := w.Header().Get("Access-Control-Expose-Headers")
	for _, h := range []string{"ETag", middleware.HeaderIdempotencyReplayed} {
		if !strings.Contains(exposed, h) {
			t.Fatalf("expected %s exposed, got %q", h, exposed)
		}
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/swagger/doc.json", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/checkout") {
		t.Fatalf("expected swagger doc with /checkout, got %d", w.Code)
	}
}

func TestRegisterRoutes_OrderFlow(t *testing.T) {
	r := newRouter(t, testConfig())
	idem := map[string]string{middleware.HeaderIdempotencyKey: "cart-1"}

	w := serve(r, http.MethodPost, "/api/v1/checkout", checkoutJSON, idem)
	if w.Code != http.StatusCreated {
		t.Fatalf("checkout: want 201, got %d %s", w.Code, w.Body.String())
	}
	var created struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.OrderID == "" {
		t.Fatalf("bad checkout body %q: %v", w.Body.String(), err)
	}

	w = serve(r, http.MethodPost, "/api/v1/checkout", checkoutJSON, idem)
	if w.Code != http.StatusOK || w.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("replay: want 200 + replayed header, got %d %v", w.Code, w.Header())
	}

	if w = serve(r, http.MethodPost, "/api/v1/checkout", checkoutJSON, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing key: want 400, got %d", w.Code)
	}

	base := "/api/v1/orders/" + created.OrderID
	w = serve(r, http.MethodGet, base, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: want 200, got %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" || w.Header().Get("Cache-Control") != "private, no-cache" {
		t.Fatalf("order reads must carry ETag and revalidation headers: %v", w.Header())
	}

	w = serve(r, http.MethodPost, base+"/transitions", `{"target_status":"paid","expected_status":"pending"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("transition: want 200, got %d %s", w.Code, w.Body.String())
	}
	if w = serve(r, http.MethodGet, base, "", map[string]string{"If-None-Match": etag}); w.Code != http.StatusOK {
		t.Fatalf("old etag must not match after a transition, got %d", w.Code)
	}

	w = serve(r, http.MethodGet, base+"/progress", "", nil)
	var view struct {
		Rank  int    `json:"rank"`
		Label string `json:"label"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil || view.Rank != 1 {
		t.Fatalf("progress: want rank 1, got %s (%v)", w.Body.String(), err)
	}

	w = serve(r, http.MethodPost, base+"/transitions", `{"target_status":"delivered"}`, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("paid -> delivered: want 422, got %d", w.Code)
	}
}

func TestRegisterRoutes_GzipsWhenAccepted(t *testing.T) {
	r := newRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/health", "", map[string]string{"Accept-Encoding": "gzip"})
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, got %v", w.Header())
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	plain, _ := io.ReadAll(zr)
	if !bytes.Contains(plain, []byte(`"status":"ok"`)) {
		t.Fatalf("unexpected body %q", plain)
	}
}

func TestRegisterRoutes_RateLimitBypassedByReplay(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0
	cfg.RateBurst = 1
	r := newRouter(t, cfg)
	buyer := map[string]string{middleware.HeaderIdempotencyKey: "rl-1"}

	if w := serve(r, http.MethodPost, "/api/v1/checkout", checkoutJSON, buyer); w.Code != http.StatusCreated {
		t.Fatalf("first: want 201, got %d", w.Code)
	}
	// Bucket is empty now; a replay of the completed key still goes through.
	if w := serve(r, http.MethodPost, "/api/v1/checkout", checkoutJSON, buyer); w.Code != http.StatusOK {
		t.Fatalf("replay: want 200, got %d", w.Code)
	}
	buyer[middleware.HeaderIdempotencyKey] = "rl-2"
	w := serve(r, http.MethodPost, "/api/v1/checkout", checkoutJSON, buyer)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("fresh key: want 429 with Retry-After, got %d", w.Code)
	}
}

func TestCompletedLookup(t *testing.T) {
	db := newTestDB(t)
	lookup := completedLookup(db)
	now := time.Now()

	if done, err := lookup(t.Context(), "unknown"); err != nil || done {
		t.Fatalf("unknown key: got %v %v", done, err)
	}
	rec, err := repo.ClaimIdempotency(t.Context(), db, "k1", time.Hour, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if done, _ := lookup(t.Context(), "k1"); done {
		t.Fatalf("in-flight key must not count as completed")
	}
	if err := repo.CompleteIdempotency(t.Context(), db, "k1", rec.Token, "order-1", now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done, err := lookup(t.Context(), "k1"); err != nil || !done {
		t.Fatalf("completed key: got %v %v", done, err)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := serve(r, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}
