package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FulfillmentMetrics holds Prometheus metrics for the checkout -> payment ->
// provisioning pipeline.
type FulfillmentMetrics struct {
	// Checkout
	CheckoutStarted *prometheus.CounterVec
	OrdersCreated   prometheus.Counter

	// Webhooks
	WebhookReceived *prometheus.CounterVec
	WebhookOutcome  *prometheus.CounterVec

	// Provisioning
	OrdersCompleted      prometheus.Counter
	OrdersFailed         prometheus.Counter
	ProvisioningDuration *prometheus.HistogramVec
	TokenExchanges       *prometheus.CounterVec
	SupplierAPILatency   *prometheus.HistogramVec

	// Side effects
	RemindersScheduled prometheus.Counter
	EventsPublished    *prometheus.CounterVec
	ActivationEmails   *prometheus.CounterVec
}

// NewFulfillmentMetrics registers the metrics with the default registry.
func NewFulfillmentMetrics(namespace string) *FulfillmentMetrics {
	return newFulfillmentMetrics(promauto.With(prometheus.DefaultRegisterer), namespace)
}

func newFulfillmentMetrics(factory promauto.Factory, namespace string) *FulfillmentMetrics {
	if namespace == "" {
		namespace = "wander"
	}

	subsystem := "fulfillment"

	return &FulfillmentMetrics{
		CheckoutStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_started_total",
				Help:      "Checkout session attempts",
			},
			[]string{"outcome"}, // outcome: created, invalid, payment_error, ledger_error
		),
		OrdersCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_created_total",
				Help:      "Orders written in pending_payment",
			},
		),
		WebhookReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Verified payment webhooks by event type",
			},
			[]string{"event_type"},
		),
		WebhookOutcome: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_outcome_total",
				Help:      "Payment webhook handling results",
			},
			[]string{"outcome"}, // outcome: completed, failed, duplicate, unknown_session, ignored, invalid_signature, error
		),
		OrdersCompleted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_completed_total",
				Help:      "Orders that reached completed",
			},
		),
		OrdersFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_failed_total",
				Help:      "Orders that reached failed",
			},
		),
		ProvisioningDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "provisioning_duration_seconds",
				Help:      "Time from claim to terminal state",
				Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		TokenExchanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "supplier_token_exchanges_total",
				Help:      "Client-credentials exchanges against the supplier",
			},
			[]string{"outcome"},
		),
		SupplierAPILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "supplier_api_duration_seconds",
				Help:      "Supplier API call duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"}, // operation: token, create_order
		),
		RemindersScheduled: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reminders_scheduled_total",
				Help:      "Reminder upserts",
			},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "events_published_total",
				Help:      "Order events published to the message bus",
			},
			[]string{"subject", "outcome"},
		),
		ActivationEmails: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "activation_emails_total",
				Help:      "Activation emails sent by the worker",
			},
			[]string{"outcome"},
		),
	}
}

// Global instance for easy access from services and handlers.
// Nil until InitFulfillmentMetrics is called; callers check before use.
var Business *FulfillmentMetrics

// InitFulfillmentMetrics initializes the global metrics instance.
func InitFulfillmentMetrics(namespace string) *FulfillmentMetrics {
	Business = NewFulfillmentMetrics(namespace)
	return Business
}
