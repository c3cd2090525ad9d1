package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_submissions_created_total",
			Help: "Total number of submissions created by section",
		},
		[]string{"section"},
	)

	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_decisions_total",
			Help: "Total number of review decisions by result",
		},
		[]string{"section", "decision"},
	)

	DecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "review_decision_duration_seconds",
			Help: "Duration of approve/reject processing in seconds",
		},
		[]string{"decision"},
	)

	BulkItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_bulk_items_total",
			Help: "Per-item outcomes of bulk operations",
		},
		[]string{"operation", "result"},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_notification_failures_total",
			Help: "Notification deliveries that failed and were swallowed",
		},
		[]string{"type"},
	)
)
