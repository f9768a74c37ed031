package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myme_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "myme_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TransfersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myme_transfers_created_total",
			Help: "Total number of transfers accepted by the engine",
		},
		[]string{"kind"},
	)

	TransfersRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myme_transfers_rejected_total",
			Help: "Total number of transfers rejected during validation",
		},
		[]string{"reason"},
	)

	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myme_settlements_total",
			Help: "Total number of settlement attempts by result",
		},
		[]string{"result"},
	)

	SettledAmountTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "myme_settled_amount_minor_total",
			Help: "Sum of completed transaction amounts in minor units",
		},
	)

	SettlementQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "myme_settlement_queue_length",
			Help: "Current length of the settlement queue",
		},
	)

	DisputeTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myme_dispute_transitions_total",
			Help: "Total number of dispute status transitions",
		},
		[]string{"to"},
	)

	ExternalAuthFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "myme_external_auth_failures_total",
			Help: "Total number of rejected access key authentications",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myme_notifications_total",
			Help: "Total number of notifications by delivery status",
		},
		[]string{"status"},
	)

	NotificationQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "myme_notification_queue_length",
			Help: "Current length of the notification queue",
		},
	)

	BillingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myme_billing_items_total",
			Help: "Total number of scheduled billing items processed",
		},
		[]string{"source", "result"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordTransferCreated(kind string) {
	TransfersCreatedTotal.WithLabelValues(kind).Inc()
}

func RecordTransferRejected(reason string) {
	TransfersRejectedTotal.WithLabelValues(reason).Inc()
}

func RecordSettlement(result string, amount int64) {
	SettlementsTotal.WithLabelValues(result).Inc()
	if result == "completed" {
		SettledAmountTotal.Add(float64(amount))
	}
}

func RecordDisputeTransition(to string) {
	DisputeTransitionsTotal.WithLabelValues(to).Inc()
}

func RecordExternalAuthFailure() {
	ExternalAuthFailuresTotal.Inc()
}

func RecordNotification(status string) {
	NotificationsTotal.WithLabelValues(status).Inc()
}

func RecordBillingItem(source, result string) {
	BillingRunsTotal.WithLabelValues(source, result).Inc()
}
