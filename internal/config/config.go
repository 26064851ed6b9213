// Package config loads the order core settings from environment variables.
// Every setting has a default; Load normalizes the values and validates them.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-order-core")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// CheckoutConfig tunes the checkout idempotency guard.
type CheckoutConfig struct {
	IdempotencyTTL  time.Duration // IDEMPOTENCY_TTL
	WaitTimeout     time.Duration // SUBMIT_WAIT_TIMEOUT
	PollInterval    time.Duration // SUBMIT_POLL_INTERVAL
	DefaultCurrency string        // DEFAULT_CURRENCY, ISO 4217
}

// JobsConfig controls the outbox relay and the retention sweeper.
type JobsConfig struct {
	Enabled         bool          // JOBS_ENABLED
	KafkaBrokers    []string      // KAFKA_BROKERS; empty means log-only publishing
	KafkaTopic      string        // KAFKA_TOPIC
	OutboxSchedule  string        // OUTBOX_SCHEDULE (cron spec)
	OutboxBatchSize int           // OUTBOX_BATCH_SIZE
	OutboxRetention time.Duration // OUTBOX_RETENTION; 0 keeps published events
	PurgeSchedule   string        // PURGE_SCHEDULE (cron spec)
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // Postgres DSN

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Orders
	Checkout              CheckoutConfig
	TransitionLockTimeout time.Duration // TRANSITION_LOCK_TIMEOUT

	// Background work
	Jobs JobsConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad is Load that panics on an invalid configuration.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment. The returned Config is populated even when the
// error is non-nil.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBDriver:    strings.ToLower(strings.TrimSpace(getenv("DB_DRIVER", "sqlite"))),
		DBPath:      getenv("DB_PATH", "orders.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Orders
		Checkout: CheckoutConfig{
			IdempotencyTTL:  getdur("IDEMPOTENCY_TTL", 24*time.Hour),
			WaitTimeout:     getdur("SUBMIT_WAIT_TIMEOUT", 5*time.Second),
			PollInterval:    getdur("SUBMIT_POLL_INTERVAL", 50*time.Millisecond),
			DefaultCurrency: strings.ToUpper(strings.TrimSpace(getenv("DEFAULT_CURRENCY", "EUR"))),
		},
		TransitionLockTimeout: getdur("TRANSITION_LOCK_TIMEOUT", 2*time.Second),

		// Background work
		Jobs: JobsConfig{
			Enabled:         getbool("JOBS_ENABLED", true),
			KafkaBrokers:    splitCSV(getenv("KAFKA_BROKERS", "")),
			KafkaTopic:      getenv("KAFKA_TOPIC", "order-events"),
			OutboxSchedule:  getenv("OUTBOX_SCHEDULE", "@every 2s"),
			OutboxBatchSize: getint("OUTBOX_BATCH_SIZE", 100),
			OutboxRetention: getdur("OUTBOX_RETENTION", 7*24*time.Hour),
			PurgeSchedule:   getenv("PURGE_SCHEDULE", "@every 1m"),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-order-core"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.normalize()
	return cfg, cfg.Validate()
}

func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	if c.DBDriver == "postgresql" {
		c.DBDriver = "postgres"
	}
}

// Validate reports every invalid setting at once, joined with errors.Join.
func (c Config) Validate() error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error, fatal, panic", c.LogLevel))
	}
	check(strings.TrimSpace(c.Port) == "", "PORT must not be empty")
	check(c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DBDriver {
	case "sqlite":
		check(strings.TrimSpace(c.DBPath) == "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.DatabaseURL) == "", "DATABASE_URL must be set when DB_DRIVER=postgres")
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not one of sqlite, postgres", c.DBDriver))
	}

	check(c.RateRPS < 0, "RATE_RPS must be >= 0")
	check(c.RateBurst < 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0")

	check(c.Checkout.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.Checkout.WaitTimeout <= 0 || c.Checkout.PollInterval <= 0,
		"SUBMIT_WAIT_TIMEOUT and SUBMIT_POLL_INTERVAL must be > 0")
	check(len(c.Checkout.DefaultCurrency) != 3, "DEFAULT_CURRENCY must be a 3-letter ISO 4217 code")
	check(c.TransitionLockTimeout <= 0, "TRANSITION_LOCK_TIMEOUT must be > 0")

	check(c.Jobs.OutboxBatchSize < 1, "OUTBOX_BATCH_SIZE must be >= 1")
	check(c.Jobs.OutboxRetention < 0, "OUTBOX_RETENTION must be >= 0")
	check(len(c.Jobs.KafkaBrokers) > 0 && strings.TrimSpace(c.Jobs.KafkaTopic) == "",
		"KAFKA_TOPIC must not be empty when KAFKA_BROKERS is set")

	check(c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// fromEnv parses k with parse, returning def when k is unset, empty or
// unparsable.
func fromEnv[T any](k string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		return def
	}
	return out
}

func getenv(k, def string) string {
	return fromEnv(k, def, func(v string) (string, error) { return v, nil })
}

func getint(k string, def int) int { return fromEnv(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration { return fromEnv(k, def, time.ParseDuration) }

func getfloat(k string, def float64) float64 {
	return fromEnv(k, def, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

var errNotBool = errors.New("not a boolean")

// getbool accepts 1/true/yes/y/on and 0/false/no/n/off.
func getbool(k string, def bool) bool {
	return fromEnv(k, def, func(v string) (bool, error) {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true, nil
		case "0", "false", "no", "n", "off":
			return false, nil
		}
		return false, errNotBool
	})
}

// splitCSV splits a comma list, dropping blanks. Empty input yields nil.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns p with one leading slash and no trailing slash;
// blank input maps to "/".
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
