package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	WebhooksReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payhook_webhooks_received_total",
			Help: "Inbound webhook deliveries by provider",
		},
		[]string{"provider"},
	)

	WebhookResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payhook_webhook_results_total",
			Help: "Webhook deliveries by provider and result",
		},
		[]string{"provider", "result"},
	)

	WebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payhook_webhook_duration_seconds",
			Help:    "End-to-end webhook handling time",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	ProcessingAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payhook_processing_attempts",
			Help:    "Processing attempts per admitted event",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
		[]string{"provider"},
	)

	PaymentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payhook_payment_transitions_total",
			Help: "Applied payment status transitions",
		},
		[]string{"provider", "from", "to"},
	)

	OutcomePublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payhook_outcome_publish_failures_total",
			Help: "Payment outcomes that could not be published",
		},
	)
)

// Result labels used with WebhookResults.
const (
	ResultProcessed    = "processed"
	ResultDuplicate    = "duplicate"
	ResultFailed       = "failed"
	ResultViolation    = "violation"
	ResultRateLimited  = "rate_limited"
	ResultInvalid      = "invalid"
	ResultUnauthorized = "unauthorized"
)

var registerOnce sync.Once

// RegisterMetrics registers every collector with the default registry. It is
// safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			WebhooksReceived,
			WebhookResults,
			WebhookDuration,
			ProcessingAttempts,
			PaymentTransitions,
			OutcomePublishFailures,
		)
	})
}
