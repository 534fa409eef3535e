package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "settlement"

// Settlement results.
const (
	ResultSettled           = "settled"
	ResultReplayed          = "replayed"
	ResultInsufficientStock = "insufficient_stock"
	ResultFailed            = "failed"
	ResultRejected          = "rejected"
)

// SettlementMetrics tracks order settlement outcomes and gateway confirmations.
type SettlementMetrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  prometheus.Counter
	webhooks *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement collectors. A nil registerer yields no-op metrics.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "total",
		Help:      "Settlement attempts by result.",
	}, []string{"result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "duration_seconds",
		Help:      "Time spent settling a transaction into an order.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retries_total",
		Help:      "Settlement commits retried after a transient failure.",
	})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_confirmations_total",
		Help:      "Gateway confirmations received by gateway and outcome.",
	}, []string{"gateway", "outcome"})
	reg.MustRegister(outcomes, duration, retries, webhooks)
	return &SettlementMetrics{
		outcomes: outcomes,
		duration: duration,
		retries:  retries,
		webhooks: webhooks,
	}
}

// ObserveSettlement records one settlement call.
func (m *SettlementMetrics) ObserveSettlement(result string, elapsed time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	result = normalizeLabel(result)
	m.outcomes.WithLabelValues(result).Inc()
	m.duration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// IncRetry counts a retried settlement commit.
func (m *SettlementMetrics) IncRetry() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}

// IncConfirmation counts a gateway confirmation (callback, verification or webhook).
func (m *SettlementMetrics) IncConfirmation(gateway, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(gateway), normalizeLabel(outcome)).Inc()
}
