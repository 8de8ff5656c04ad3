package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	SessionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "opcua_sessions_total",
			Help: "Current number of sessions by state",
		},
		[]string{"state"},
	)

	SessionsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opcua_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	SessionsClosedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opcua_sessions_closed_total",
			Help: "Total number of sessions closed",
		},
	)

	SessionsOrphanedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opcua_sessions_orphaned_total",
			Help: "Total number of sessions orphaned by channel loss",
		},
	)

	// Secure channel metrics
	ChannelsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "opcua_channels_total",
			Help: "Current number of connected secure channels by role",
		},
		[]string{"role"},
	)

	ChannelsLostTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opcua_channels_lost_total",
			Help: "Total number of secure channel loss events handled",
		},
	)

	// Request handle table metrics
	RequestHandlesOutstanding = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opcua_request_handles_outstanding",
			Help: "Number of request handles currently awaiting a response",
		},
	)

	RequestHandleValidationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opcua_request_handle_validation_failures_total",
			Help: "Total number of responses rejected for request handle or type mismatch",
		},
	)

	// Dispatcher metrics
	DispatchedMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opcua_dispatched_messages_total",
			Help: "Total number of messages processed by the dispatcher by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	DispatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "opcua_dispatch_latency_seconds",
			Help:    "Time taken to process one message in on_message",
			Buckets: prometheus.DefBuckets,
		},
	)

	// PKI validation metrics
	CertValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opcua_cert_validations_total",
			Help: "Total number of certificate validations by resulting status",
		},
		[]string{"status"},
	)

	CertValidationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "opcua_cert_validation_duration_seconds",
			Help:    "Time taken to validate a certificate chain",
			Buckets: prometheus.DefBuckets,
		},
	)

	RejectedCertsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opcua_rejected_certs_total",
			Help: "Current length of the rejected certificate list",
		},
	)

	TrustListReloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opcua_trust_list_reloads_total",
			Help: "Total number of trust list reloads from the on-disk store",
		},
	)
)

func init() {
	prometheus.MustRegister(SessionsTotal)
	prometheus.MustRegister(SessionsCreatedTotal)
	prometheus.MustRegister(SessionsClosedTotal)
	prometheus.MustRegister(SessionsOrphanedTotal)
	prometheus.MustRegister(ChannelsTotal)
	prometheus.MustRegister(ChannelsLostTotal)
	prometheus.MustRegister(RequestHandlesOutstanding)
	prometheus.MustRegister(RequestHandleValidationFailures)
	prometheus.MustRegister(DispatchedMessagesTotal)
	prometheus.MustRegister(DispatchLatency)
	prometheus.MustRegister(CertValidationsTotal)
	prometheus.MustRegister(CertValidationDuration)
	prometheus.MustRegister(RejectedCertsTotal)
	prometheus.MustRegister(TrustListReloadsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
