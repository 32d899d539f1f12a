package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truetestify",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "truetestify",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 30},
		},
		[]string{"method", "route"},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truetestify",
			Subsystem: "reviews",
			Name:      "submissions_total",
			Help:      "Review submissions by type and outcome",
		},
		[]string{"type", "result"},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truetestify",
			Subsystem: "reviews",
			Name:      "upload_bytes_total",
			Help:      "Bytes uploaded with review submissions",
		},
		[]string{"type"},
	)

	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truetestify",
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Object storage operations",
		},
		[]string{"backend", "operation", "status"},
	)

	StorageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "truetestify",
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Object storage operation duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 30},
		},
		[]string{"backend", "operation"},
	)

	OutboxEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truetestify",
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox events by publish outcome",
		},
		[]string{"result"},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truetestify",
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Billing webhook events by type and outcome",
		},
		[]string{"type", "result"},
	)
)

func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

func RecordSubmission(reviewType, result string, bytes int64) {
	SubmissionsTotal.WithLabelValues(reviewType, result).Inc()
	if result == "success" && bytes > 0 {
		UploadBytesTotal.WithLabelValues(reviewType).Add(float64(bytes))
	}
}

func RecordStorageOperation(backend, operation, status string, durationSec float64) {
	StorageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	StorageDuration.WithLabelValues(backend, operation).Observe(durationSec)
}

func RecordOutbox(result string, n int) {
	if n > 0 {
		OutboxEventsTotal.WithLabelValues(result).Add(float64(n))
	}
}

func RecordWebhook(eventType, result string) {
	WebhookEventsTotal.WithLabelValues(eventType, result).Inc()
}
