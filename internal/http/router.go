// Package httpapi wires the HTTP transport (Gin) to the order services,
// middleware and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, access logging, panic recovery, compression,
// metrics, CORS, security headers, idempotency keys and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-order-core/docs"
	"github.com/tbourn/go-order-core/internal/config"
	"github.com/tbourn/go-order-core/internal/domain"
	"github.com/tbourn/go-order-core/internal/http/handlers"
	"github.com/tbourn/go-order-core/internal/http/middleware"
	"github.com/tbourn/go-order-core/internal/repo"
	"github.com/tbourn/go-order-core/internal/services"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

var (
	corsMethods = []string{"GET", "POST", "OPTIONS"}
	corsHeaders = []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		"If-None-Match", middleware.HeaderIdempotencyKey,
	}
	exposedHeaders = []string{
		"X-Request-ID", "ETag", "Retry-After", middleware.HeaderIdempotencyReplayed,
	}
)

// Services bundles the application services mounted by RegisterRoutes.
type Services struct {
	Checkout    *services.CheckoutService
	Orders      *services.OrderService
	Transitions *services.TransitionService
}

// NewServices builds the order services from configuration.
func NewServices(db *gorm.DB, cfg config.Config) Services {
	return Services{
		Checkout: &services.CheckoutService{
			DB:              db,
			TTL:             cfg.Checkout.IdempotencyTTL,
			WaitTimeout:     cfg.Checkout.WaitTimeout,
			PollInterval:    cfg.Checkout.PollInterval,
			DefaultCurrency: cfg.Checkout.DefaultCurrency,
		},
		Orders: &services.OrderService{DB: db},
		Transitions: &services.TransitionService{
			DB:          db,
			LockTimeout: cfg.TransitionLockTimeout,
		},
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the order API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. AccessLogger: structured logs with header masking and PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip
//  7. Metrics
//  8. CORS and security headers
//
// On the API group the idempotency key validator runs before the rate
// limiter so replays of completed checkouts bypass the limit.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) Services {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLogger(middleware.LogOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/swagger"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		CacheControl:  "no-store",
		EnablePolicy:  true,
		ExposeHeaders: exposedHeaders,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	svc := NewServices(db, cfg)
	h := handlers.New(svc.Checkout, svc.Orders, svc.Transitions)

	idem := middleware.IdempotencyKey(middleware.IdempotencyOptions{
		MaxLen:   services.MaxKeyLength,
		Required: true,
	}, completedLookup(db))
	limit := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByBuyerOrIP()).Handler()

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/checkout", idem, limit, h.SubmitCheckout)

		orders := api.Group("/orders", limit)
		orders.GET("/:id", h.GetOrder)
		orders.GET("/:id/progress", h.GetProgress)
		orders.POST("/:id/transitions", h.TransitionOrder)
	}
	return svc
}

// completedLookup reports whether key already resolved to an order.
func completedLookup(db *gorm.DB) middleware.ReplayLookup {
	return func(ctx context.Context, key string) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, key)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return rec.State == domain.IdempotencyCompleted, nil
	}
}

// corsMiddleware allows every origin when none is configured, otherwise only
// the allowlist, echoing the matching Origin.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     corsMethods,
		AllowHeaders:     corsHeaders,
		ExposeHeaders:    exposedHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// ACAO: * even without an Origin header (health checks, curl).
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps the request body size at maxBytes using
// http.MaxBytesReader. Reads past the cap fail downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
