// Package radiometrics defines the Prometheus collectors for the segment
// production pipeline.
package radiometrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Queue metrics
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radio_jobs_enqueued_total",
		Help: "Total jobs enqueued",
	}, []string{"job_type"})

	JobsClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radio_jobs_claimed_total",
		Help: "Total jobs claimed by workers",
	}, []string{"job_type"})

	JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radio_jobs_completed_total",
		Help: "Total jobs completed",
	})

	JobsRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radio_jobs_retried_total",
		Help: "Total jobs requeued with backoff after a retryable failure",
	}, []string{"job_type"})

	JobsDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radio_jobs_dead_lettered_total",
		Help: "Total jobs moved to the dead letter queue",
	}, []string{"job_type", "kind"})

	JobsLeaseExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radio_jobs_lease_expired_total",
		Help: "Total jobs recovered by the janitor after lease expiry",
	})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "radio_queue_depth",
		Help: "Jobs currently in the queue by status",
	}, []string{"status"})

	// Worker metrics
	WorkerInflight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "radio_worker_inflight_jobs",
		Help: "Jobs currently being processed by a worker instance",
	}, []string{"worker_type"})

	WorkerPoisonPauses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radio_worker_poison_pauses_total",
		Help: "Times a job type was paused after consecutive failures",
	}, []string{"job_type"})

	// Segment metrics
	SegmentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radio_segment_transitions_total",
		Help: "Segment state transitions",
	}, []string{"from", "to"})

	SegmentsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radio_segments_failed_total",
		Help: "Segments that reached the failed state",
	}, []string{"reason"})

	// Retrieval metrics
	RetrievalQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radio_retrieval_queries_total",
		Help: "Hybrid retrieval queries served",
	}, []string{"mode"})

	// Outbound adapter metrics
	AdapterLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radio_adapter_request_seconds",
		Help:    "Latency of outbound adapter calls",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"adapter"})

	NTPSkew = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radio_ntp_skew_milliseconds",
		Help: "Last measured NTP clock skew",
	})
)
