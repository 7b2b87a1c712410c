package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsSubmitted counts accepted submissions by job kind.
	JobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motegao_jobs_submitted_total",
			Help: "Total number of recon jobs accepted for dispatch",
		},
		[]string{"kind"},
	)

	// JobsFinished counts jobs reaching a terminal state by kind and status.
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motegao_jobs_finished_total",
			Help: "Total number of recon jobs that reached a terminal state",
		},
		[]string{"kind", "status"},
	)

	// JobDuration tracks how long a tool ran, in seconds.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "motegao_job_duration_seconds",
			Help:    "Wall time of recon tool runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14), // 0.5s to ~68min
		},
		[]string{"kind"},
	)

	// WorkersActive tracks the number of currently active workers.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "motegao_workers_active",
			Help: "Number of worker goroutines currently running a job",
		},
	)

	// ParseFaults counts tool output that broke the expected grammar.
	ParseFaults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motegao_parse_faults_total",
			Help: "Total number of jobs failed by a parser fault",
		},
		[]string{"kind"},
	)

	// ProgressCoalesced counts progress snapshots replaced before the store
	// saw them because a newer one arrived.
	ProgressCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "motegao_progress_coalesced_total",
			Help: "Total number of progress updates superseded before being written",
		},
	)

	// CancelRequests counts cancellation requests by the status they found.
	CancelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motegao_cancel_requests_total",
			Help: "Total number of cancellation requests",
		},
		[]string{"outcome"},
	)
)
