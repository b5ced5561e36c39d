package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsSubmitted tracks total jobs submitted
	JobsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "doctrans_jobs_submitted_total",
			Help: "Total number of translation jobs submitted",
		},
	)

	// JobsFinished tracks terminal jobs by final status
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doctrans_jobs_finished_total",
			Help: "Total number of translation jobs reaching a terminal status",
		},
		[]string{"status"},
	)

	// ActiveJobs tracks the current number of jobs in the active registry
	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "doctrans_active_jobs",
			Help: "Number of jobs currently in the active registry",
		},
	)

	// StageDuration tracks per-stage execution latency
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "doctrans_stage_duration_seconds",
			Help:    "Pipeline stage execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// JobDuration tracks end-to-end job processing time
	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "doctrans_job_duration_seconds",
			Help:    "End-to-end job processing time in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// ErrorsTotal tracks handled errors by code and category
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doctrans_errors_total",
			Help: "Total number of handled pipeline errors",
		},
		[]string{"code", "category"},
	)

	// RecoveryAttempts tracks recovery strategy executions by outcome
	RecoveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doctrans_recovery_attempts_total",
			Help: "Total number of recovery strategy executions",
		},
		[]string{"strategy", "status"},
	)

	// DBConnectionPoolUsage tracks archive connection pool saturation
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "doctrans_db_connection_pool_usage",
			Help: "Archive database connection pool usage percentage",
		},
	)

	// JobsReclaimed tracks jobs force-failed by the reclamation sweep
	JobsReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "doctrans_jobs_reclaimed_total",
			Help: "Total number of jobs force-failed after exceeding the job timeout",
		},
	)
)
