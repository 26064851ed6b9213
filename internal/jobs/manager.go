// Package jobs runs the periodic background work of the order core on a
// github.com/robfig/cron/v3 scheduler.
//
// # Jobs
//
//  1. outbox: drains unpublished order events through events.Relay.
//  2. purge: expires abandoned idempotency claims, purges expired records and
//     deletes events published before the retention cutoff.
//
// Every job is wrapped in cron.SkipIfStillRunning, so a slow run is never
// overlapped by the next tick.
//
// # Usage
//
//	m := jobs.NewManager(log.Logger)
//	_ = m.Add("outbox", "@every 2s", jobs.OutboxJob(relay))
//	_ = m.Add("purge", "@every 1m", jobs.PurgeJob(db, 24*time.Hour, nil))
//	m.Start()
//	defer m.Stop(ctx)
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Func is one job run. The context is canceled when the manager stops.
type Func func(ctx context.Context) error

// Manager owns the scheduler and the jobs registered on it.
type Manager struct {
	cron   *cron.Cron
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager returns a stopped manager logging to logger.
func NewManager(logger zerolog.Logger) *Manager {
	cl := cronLogger{l: logger.With().Str("component", "jobs").Logger()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: cl.l,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add schedules fn under name. spec is any expression accepted by the
// standard cron parser, including descriptors such as "@every 2s".
func (m *Manager) Add(name, spec string, fn Func) error {
	_, err := m.cron.AddFunc(spec, func() {
		start := time.Now()
		err := fn(m.ctx)
		jobRuns.WithLabelValues(name, runResult(err)).Inc()
		jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil && m.ctx.Err() == nil {
			m.logger.Error().Err(err).Str("job", name).Msg("job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	m.logger.Info().Str("job", name).Str("schedule", spec).Msg("job scheduled")
	return nil
}

// Start runs the scheduler in its own goroutine.
func (m *Manager) Start() {
	m.cron.Start()
}

// Stop halts scheduling, cancels running jobs and waits for them to return
// or for ctx to expire.
func (m *Manager) Stop(ctx context.Context) error {
	done := m.cron.Stop()
	m.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
