// Package metrics defines the Prometheus metrics exposed by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Bulk sync metrics
	SyncBatches  *prometheus.CounterVec
	SyncItems    *prometheus.CounterVec
	SyncDuration *prometheus.HistogramVec

	// Remote ticket service metrics
	RemoteCalls   *prometheus.CounterVec
	RemoteRetries prometheus.Counter

	// Index maintenance metrics
	IndexRowsInserted prometheus.Counter
	IndexChunks       prometheus.Counter
	ReindexDuration   *prometheus.HistogramVec

	// Health sweep metrics
	JobsMarkedFailed prometheus.Counter
}

// New creates and registers all metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates and registers all metrics on the provided registerer.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SyncBatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grc_sync_batches_total",
				Help: "Total number of bulk sync batches processed",
			},
			[]string{"variant"},
		),
		SyncItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grc_sync_items_total",
				Help: "Total number of bulk sync items processed",
			},
			[]string{"variant", "result"},
		),
		SyncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grc_sync_duration_seconds",
				Help:    "Duration of bulk sync batches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"variant"},
		),
		RemoteCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grc_tracker_calls_total",
				Help: "Total number of remote ticket service calls",
			},
			[]string{"operation", "result"},
		),
		RemoteRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "grc_tracker_retries_total",
				Help: "Total number of retried remote ticket service calls",
			},
		),
		IndexRowsInserted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "grc_index_rows_inserted_total",
				Help: "Total number of full-text index rows inserted",
			},
		),
		IndexChunks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "grc_index_insert_chunks_total",
				Help: "Total number of chunked index insert statements",
			},
		),
		ReindexDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grc_reindex_duration_seconds",
				Help:    "Duration of reindex operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"object_type"},
		),
		JobsMarkedFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "grc_jobs_marked_failed_total",
				Help: "Total number of background jobs marked failed by the health sweep",
			},
		),
	}
}
