// Command server runs the order core HTTP API together with the outbox relay
// and the idempotency/outbox retention jobs.
//
// @title          Order Core API
// @version        1.0
// @description    Checkout submission with idempotency keys, order status lifecycle and progress projection.
// @BasePath       /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-core/internal/config"
	"github.com/tbourn/go-order-core/internal/events"
	httpapi "github.com/tbourn/go-order-core/internal/http"
	"github.com/tbourn/go-order-core/internal/jobs"
	"github.com/tbourn/go-order-core/internal/observability"
	"github.com/tbourn/go-order-core/internal/repo"
	"github.com/tbourn/go-order-core/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownGrace = 10 * time.Second

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	logger := sysutil.NewLogger(os.Stdout, cfg.OTEL.ServiceName, cfg.LogPretty)
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version))
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup")
	}
	defer func() {
		if err := shutdownOTel.WithTimeout(5 * time.Second); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := openDB(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database")
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, cfg)

	var (
		mgr      *jobs.Manager
		closePub = func() {}
	)
	if cfg.Jobs.Enabled {
		mgr, closePub, err = startJobs(db, cfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("jobs")
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("base_path", cfg.APIBasePath).
			Str("db_driver", cfg.DBDriver).
			Bool("jobs", cfg.Jobs.Enabled).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if mgr != nil {
		if err := mgr.Stop(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("jobs did not stop in time")
		}
		closePub()
	}
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.Open(cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			return nil, err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// startJobs schedules the outbox relay and the retention sweeper. Events go
// to Kafka when brokers are configured and to the log otherwise. The
// returned func closes the publisher once the jobs have stopped.
func startJobs(db *gorm.DB, cfg config.Config, logger zerolog.Logger) (*jobs.Manager, func(), error) {
	var pub events.Publisher = events.LogPublisher{Logger: logger.With().Str("component", "outbox").Logger()}
	closePub := func() {}
	if len(cfg.Jobs.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Jobs.KafkaBrokers, cfg.Jobs.KafkaTopic)
		pub = kp
		closePub = func() {
			if err := kp.Close(); err != nil {
				logger.Warn().Err(err).Msg("kafka writer close")
			}
		}
	}
	relay := &events.Relay{DB: db, Publisher: pub, BatchSize: cfg.Jobs.OutboxBatchSize}

	mgr := jobs.NewManager(logger)
	if err := mgr.Add("outbox_relay", cfg.Jobs.OutboxSchedule, jobs.OutboxJob(relay)); err != nil {
		return nil, nil, err
	}
	if err := mgr.Add("retention_purge", cfg.Jobs.PurgeSchedule, jobs.PurgeJob(db, cfg.Jobs.OutboxRetention, time.Now)); err != nil {
		return nil, nil, err
	}
	mgr.Start()
	return mgr, closePub, nil
}
