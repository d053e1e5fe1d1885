// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	// Ingestion metrics
	LogNotificationsReceived prometheus.Counter
	EventsParsed             *prometheus.CounterVec
	EventParseErrors         prometheus.Counter

	// Reconciliation metrics
	FlowsStarted     prometheus.Counter
	FlowsCompleted   *prometheus.CounterVec
	DuplicateRefs    prometheus.Counter
	PendingFlows     prometheus.Gauge
	ValidationErrors *prometheus.CounterVec

	// Gateway metrics
	PayoutsInitiated prometheus.Counter
	PayoutOutcomes   *prometheus.CounterVec
	GatewayLatency   *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec

	// Chain metrics
	ConfirmationsSent   prometheus.Counter
	ConfirmationErrors  prometheus.Counter
	ConfirmationLatency prometheus.Histogram
	RPCCallLatency      *prometheus.HistogramVec

	// Notification metrics
	NotificationsSent  *prometheus.CounterVec
	NotificationErrors prometheus.Counter

	// Audit metrics
	AuditWriteErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "swiftpay_bot"
	}

	return &Metrics{
		// Ingestion metrics
		LogNotificationsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "log_notifications_received_total",
			Help:      "Total number of log notifications received over WebSocket",
		}),
		EventsParsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_parsed_total",
			Help:      "Total number of program events parsed by kind",
		}, []string{"kind"}),
		EventParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "event_parse_errors_total",
			Help:      "Total number of malformed event log lines skipped",
		}),

		// Reconciliation metrics
		FlowsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "flows_started_total",
			Help:      "Total number of reconciliation flows started",
		}),
		FlowsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "flows_completed_total",
			Help:      "Total number of reconciliation flows completed by final status",
		}, []string{"status"}),
		DuplicateRefs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duplicate_references_total",
			Help:      "Total number of events refused because the reference was already in flight",
		}),
		PendingFlows: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "pending_flows",
			Help:      "Current number of in-flight reconciliation flows",
		}),
		ValidationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "validation_errors_total",
			Help:      "Total number of events rejected before payout by error kind",
		}, []string{"kind"}),

		// Gateway metrics
		PayoutsInitiated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "payouts_initiated_total",
			Help:      "Total number of payouts sent to the provider",
		}),
		PayoutOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "payout_outcomes_total",
			Help:      "Total number of payout outcomes by result and error code",
		}, []string{"result", "code"}),
		GatewayLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_latency_seconds",
			Help:      "Payout gateway request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),

		// Chain metrics
		ConfirmationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "confirmations_sent_total",
			Help:      "Total number of confirmation transactions submitted",
		}),
		ConfirmationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "confirmation_errors_total",
			Help:      "Total number of failed confirmation attempts",
		}),
		ConfirmationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "confirmation_latency_seconds",
			Help:      "Time from submission to network confirmation in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 90},
		}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Notification metrics
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_sent_total",
			Help:      "Total number of participant notifications sent by role",
		}, []string{"role"}),
		NotificationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notification_errors_total",
			Help:      "Total number of failed notification deliveries",
		}),

		// Audit metrics
		AuditWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "write_errors_total",
			Help:      "Total number of failed audit writes by table",
		}, []string{"table"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordNotificationReceived increments the log notifications counter.
func RecordNotificationReceived() {
	DefaultMetrics.LogNotificationsReceived.Inc()
}

// RecordEventParsed increments the parsed events counter for a kind.
func RecordEventParsed(kind string) {
	DefaultMetrics.EventsParsed.WithLabelValues(kind).Inc()
}

// RecordFlowStarted increments the started flows counter and the
// pending gauge.
func RecordFlowStarted() {
	DefaultMetrics.FlowsStarted.Inc()
	DefaultMetrics.PendingFlows.Inc()
}

// RecordFlowCompleted increments the completed flows counter and
// decrements the pending gauge.
func RecordFlowCompleted(status string) {
	DefaultMetrics.FlowsCompleted.WithLabelValues(status).Inc()
	DefaultMetrics.PendingFlows.Dec()
}

// RecordPayoutOutcome increments the payout outcome counter.
func RecordPayoutOutcome(success bool, code string) {
	result := "success"
	if !success {
		result = "failure"
	}
	DefaultMetrics.PayoutOutcomes.WithLabelValues(result, code).Inc()
}

// RecordBreakerState sets the breaker state gauge for a named breaker.
func RecordBreakerState(name string, state float64) {
	DefaultMetrics.BreakerState.WithLabelValues(name).Set(state)
}
