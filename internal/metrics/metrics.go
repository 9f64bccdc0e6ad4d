package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Messages enqueued counter
	MessagesEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqs_messages_enqueued_total",
			Help: "Total number of messages enqueued",
		},
		[]string{"queue"},
	)

	// Messages leased by ReceiveMessage
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqs_messages_received_total",
			Help: "Total number of messages received",
		},
		[]string{"queue"},
	)

	// Messages acknowledged counter
	MessagesAcked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqs_messages_acked_total",
			Help: "Total number of messages acknowledged",
		},
	)

	VisibilityChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqs_visibility_changes_total",
			Help: "Total number of successful visibility timeout changes",
		},
	)

	// Messages physically removed by the retention sweeper
	MessagesPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqs_messages_purged_total",
			Help: "Total number of deleted or expired messages removed by sweeper",
		},
	)

	QueuesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqs_queues_created_total",
			Help: "Total number of queues created, explicitly or on first use",
		},
	)

	// API requests by operation and result code ("OK" on success)
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqs_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"operation", "code"},
	)

	// Sweeper run duration
	SweeperDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqs_sweeper_duration_seconds",
			Help:    "Time taken for sweeper to process messages",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Sweeper errors counter
	SweeperErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqs_sweeper_errors_total",
			Help: "Total number of sweeper errors",
		},
	)
)
