package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_jobs_submitted_total",
			Help: "Total number of jobs accepted for execution",
		},
		[]string{"kind"}, // batch, streaming
	)

	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_jobs_finished_total",
			Help: "Total number of jobs reaching a terminal status",
		},
		[]string{"status"},
	)

	WorkUnitsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_work_units_dispatched_total",
			Help: "Total number of work units sent to detection workers",
		},
		[]string{"algorithm"},
	)

	ResponsesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_responses_processed_total",
			Help: "Total number of worker responses absorbed",
		},
		[]string{"media_type", "errored"},
	)

	TracksCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_tracks_created_total",
			Help: "Total number of tracks built from worker responses",
		},
	)

	DerivativeMediaTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_derivative_media_total",
			Help: "Total number of derivative media spawned mid-pipeline",
		},
	)

	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_active_jobs",
			Help: "Jobs currently in a non-terminal status",
		},
	)

	ActionProcessingSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_action_processing_seconds",
			Help:    "Worker-reported processing time per work unit",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		},
		[]string{"task", "action"},
	)

	CallbackFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_callback_failures_total",
			Help: "Health/summary callback deliveries that failed",
		},
	)
)
