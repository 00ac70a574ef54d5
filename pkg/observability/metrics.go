package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the ingestion pipeline
type Metrics struct {
	// Intake metrics
	EventsAccepted    *prometheus.CounterVec
	EventsRejected    *prometheus.CounterVec
	DuplicatesSkipped prometheus.Counter
	BatchesTotal      *prometheus.CounterVec

	// Queue metrics
	JobsEnqueued *prometheus.CounterVec
	JobsRetried  *prometheus.CounterVec
	JobsParked   *prometheus.CounterVec
	QueueDepth   *prometheus.GaugeVec

	// Worker metrics
	JobsProcessed *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec

	// Aggregation metrics
	SnapshotsWritten *prometheus.CounterVec
	RowsPruned       *prometheus.CounterVec

	// Voice session metrics
	SessionsSwept prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		EventsAccepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildpulse_events_accepted_total",
				Help: "Total number of events accepted at intake",
			},
			[]string{"type"},
		),
		EventsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildpulse_events_rejected_total",
				Help: "Total number of events dropped at intake validation",
			},
			[]string{"reason"},
		),
		DuplicatesSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "guildpulse_events_duplicates_skipped_total",
				Help: "Total number of duplicate raw events skipped on insert",
			},
		),
		BatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildpulse_batches_total",
				Help: "Total number of intake batches by outcome",
			},
			[]string{"status"},
		),
		JobsEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildpulse_queue_jobs_enqueued_total",
				Help: "Total number of jobs enqueued",
			},
			[]string{"name", "priority"},
		),
		JobsRetried: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildpulse_queue_jobs_retried_total",
				Help: "Total number of job retries scheduled",
			},
			[]string{"name"},
		),
		JobsParked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildpulse_queue_jobs_parked_total",
				Help: "Total number of jobs parked on the dead-letter list",
			},
			[]string{"name"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "guildpulse_queue_depth",
				Help: "Current number of jobs waiting per priority list",
			},
			[]string{"priority"},
		),
		JobsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildpulse_jobs_processed_total",
				Help: "Total number of jobs processed by workers",
			},
			[]string{"name", "status"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guildpulse_job_duration_seconds",
				Help:    "Job handler duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"name"},
		),
		SnapshotsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildpulse_snapshots_written_total",
				Help: "Total number of metrics snapshots written",
			},
			[]string{"period_type"},
		),
		RowsPruned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildpulse_rows_pruned_total",
				Help: "Total number of rows removed by retention cleanup",
			},
			[]string{"table"},
		),
		SessionsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "guildpulse_voice_sessions_swept_total",
				Help: "Total number of stale voice sessions removed by the sweep",
			},
		),
	}

	registry.MustRegister(
		m.EventsAccepted,
		m.EventsRejected,
		m.DuplicatesSkipped,
		m.BatchesTotal,
		m.JobsEnqueued,
		m.JobsRetried,
		m.JobsParked,
		m.QueueDepth,
		m.JobsProcessed,
		m.JobDuration,
		m.SnapshotsWritten,
		m.RowsPruned,
		m.SessionsSwept,
	)

	return m
}

// Handler returns an HTTP handler serving the registry in Prometheus format
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
