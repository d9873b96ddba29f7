package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pgwallah"

// ReconciliationMetrics counts how gateway events were applied.
type ReconciliationMetrics struct {
	outcomes *prometheus.CounterVec
	mismatch *prometheus.CounterVec
	orphans  *prometheus.CounterVec
}

// NewReconciliationMetrics registers the reconciliation counters on reg.
// A nil registerer yields a no-op recorder.
func NewReconciliationMetrics(reg prometheus.Registerer) *ReconciliationMetrics {
	if reg == nil {
		return &ReconciliationMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliation_outcomes_total",
		Help:      "Gateway events processed by the reconciliation engine, by outcome.",
	}, []string{"gateway", "kind", "outcome"})
	mismatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "amount_mismatch_total",
		Help:      "Captured payments whose amount differs from the intent amount.",
	}, []string{"gateway"})
	orphans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orphan_capture_total",
		Help:      "Captures reported for intents already failed or cancelled.",
	}, []string{"gateway"})
	reg.MustRegister(outcomes, mismatch, orphans)
	return &ReconciliationMetrics{outcomes: outcomes, mismatch: mismatch, orphans: orphans}
}

func (m *ReconciliationMetrics) IncOutcome(gateway, kind, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(gateway), normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

func (m *ReconciliationMetrics) IncAmountMismatch(gateway string) {
	if m == nil || m.mismatch == nil {
		return
	}
	m.mismatch.WithLabelValues(normalizeLabel(gateway)).Inc()
}

func (m *ReconciliationMetrics) IncOrphanCapture(gateway string) {
	if m == nil || m.orphans == nil {
		return
	}
	m.orphans.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// GatewayMetrics tracks outbound calls to payment gateways.
type GatewayMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_requests_total",
		Help:      "Outbound payment gateway calls by operation and result.",
	}, []string{"gateway", "operation", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_request_duration_seconds",
		Help:      "Latency of outbound payment gateway calls.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"gateway", "operation"})
	reg.MustRegister(requests, duration)
	return &GatewayMetrics{requests: requests, duration: duration}
}

// Observe records one call; err decides the result label.
func (m *GatewayMetrics) Observe(gateway, operation string, elapsed time.Duration, err error) {
	if m == nil || m.requests == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.requests.WithLabelValues(normalizeLabel(gateway), normalizeLabel(operation), result).Inc()
	m.duration.WithLabelValues(normalizeLabel(gateway), normalizeLabel(operation)).Observe(elapsed.Seconds())
}
