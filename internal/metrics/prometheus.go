package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksTotal counts consumed queue tasks by type and outcome.
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blastxplorer_tasks_total",
			Help: "Total number of queue tasks processed",
		},
		[]string{"type", "status"},
	)

	// TaskDuration tracks task processing time in seconds. Direct searches
	// block for minutes, hence the wide upper buckets.
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blastxplorer_task_duration_seconds",
			Help:    "Duration of queue task processing in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~13m
		},
		[]string{"type"},
	)

	// WorkersActive tracks the number of currently busy worker goroutines.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blastxplorer_workers_active",
			Help: "Number of currently active worker goroutines",
		},
	)

	// SearchesTotal counts completed searches by backend and final status.
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blastxplorer_searches_total",
			Help: "Total number of completed searches",
		},
		[]string{"backend", "status"},
	)

	// PollCyclesTotal counts poll cycles by result (ok, skipped, error).
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blastxplorer_poll_cycles_total",
			Help: "Total number of remote poll cycles",
		},
		[]string{"result"},
	)

	// RunsExpiredTotal counts runs soft-deleted by the expiry sweep.
	RunsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blastxplorer_runs_expired_total",
			Help: "Total number of runs removed by the retention sweep",
		},
	)

	// NotificationsTotal counts notification attempts by outcome.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blastxplorer_notifications_total",
			Help: "Total number of email notification attempts",
		},
		[]string{"status"},
	)
)
