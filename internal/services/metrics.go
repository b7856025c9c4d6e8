package services

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the ingestion pipeline. A nil
// *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runs              *prometheus.CounterVec
	recordsProcessed  prometheus.Counter
	recordsRejected   prometheus.Counter
	runDuration       prometheus.Histogram
	outboxEnqueued    prometheus.Counter
	outboxOutcomes    *prometheus.CounterVec
	retentionDeletes  *prometheus.CounterVec
	schedulerFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors on a dedicated registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_runs_total",
			Help: "Total number of finished ingestion runs",
		}, []string{"source_type", "status", "dry_run"}),
		recordsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingestion_records_processed_total",
			Help: "Total number of records accepted by ingestion runs",
		}),
		recordsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingestion_records_rejected_total",
			Help: "Total number of records rejected by ingestion runs",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingestion_run_duration_seconds",
			Help:    "Duration of ingestion runs",
			Buckets: prometheus.DefBuckets,
		}),
		outboxEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "outbox_events_enqueued_total",
			Help: "Total number of outbox events enqueued",
		}),
		outboxOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_dispatch_outcomes_total",
			Help: "Outbox delivery attempts by resulting status",
		}, []string{"transport", "status"}),
		retentionDeletes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "retention_deleted_rows_total",
			Help: "Rows removed by the retention sweeper",
		}, []string{"category"}),
		schedulerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_job_failures_total",
			Help: "Scheduled job executions that returned an error",
		}, []string{"job"}),
	}
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) observeRun(sourceType, status string, dryRun bool, processed, rejected int, seconds float64) {
	if m == nil {
		return
	}
	dry := "false"
	if dryRun {
		dry = "true"
	}
	m.runs.WithLabelValues(sourceType, status, dry).Inc()
	m.recordsProcessed.Add(float64(processed))
	m.recordsRejected.Add(float64(rejected))
	m.runDuration.Observe(seconds)
}

func (m *Metrics) observeEnqueued(n int) {
	if m == nil {
		return
	}
	m.outboxEnqueued.Add(float64(n))
}

func (m *Metrics) observeDispatch(transport, status string) {
	if m == nil {
		return
	}
	m.outboxOutcomes.WithLabelValues(transport, status).Inc()
}

func (m *Metrics) observeRetention(category string, deleted int64) {
	if m == nil || deleted == 0 {
		return
	}
	m.retentionDeletes.WithLabelValues(category).Add(float64(deleted))
}

func (m *Metrics) observeSchedulerFailure(job string) {
	if m == nil {
		return
	}
	m.schedulerFailures.WithLabelValues(job).Inc()
}
