package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSelected tracks candidates produced by the selector
	MessagesSelected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailsweep_messages_selected_total",
			Help: "Total number of messages matched by the selection filter",
		},
	)

	// PagesFetched tracks listing pages retrieved from the mailbox service
	PagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailsweep_pages_fetched_total",
			Help: "Total number of listing pages fetched",
		},
	)

	// BatchesSubmitted tracks batch requests sent, by wave outcome
	BatchesSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailsweep_batches_submitted_total",
			Help: "Total number of batch delete requests submitted",
		},
	)

	// DeleteResults tracks classified sub-results
	DeleteResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailsweep_delete_results_total",
			Help: "Total delete sub-results by classification",
		},
		[]string{"class"},
	)

	// RetryWaves tracks retry waves started
	RetryWaves = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailsweep_retry_waves_total",
			Help: "Total number of retry waves started",
		},
	)

	// ThrottleStepdowns tracks adaptive throttle step-downs
	ThrottleStepdowns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailsweep_throttle_stepdowns_total",
			Help: "Total number of adaptive throttle step-downs",
		},
	)

	// Workers reports the worker count for the current wave
	Workers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailsweep_workers",
			Help: "Worker count the current wave runs with",
		},
	)

	// BatchSize reports the batch size for the current wave
	BatchSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailsweep_batch_size",
			Help: "Batch size the current wave runs with",
		},
	)

	// DBConnectionPoolUsage reports archive database pool utilisation
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailsweep_db_pool_usage_percent",
			Help: "Archive database connection pool usage percentage",
		},
	)

	// RequestLatency tracks mailbox service call latency
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailsweep_request_latency_seconds",
			Help:    "Mailbox service request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)
