package jobs

import "github.com/prometheus/client_golang/prometheus"

var (
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Background job runs by job and result.",
		},
		[]string{"job", "result"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Background job run duration.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	idempotencyPurged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idempotency_records_purged_total",
			Help: "Idempotency records released or deleted by the purge job.",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(jobRuns, jobDuration, idempotencyPurged)
}
