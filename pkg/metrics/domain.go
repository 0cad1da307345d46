package metrics

import "github.com/prometheus/client_golang/prometheus"

// RedemptionMetrics counts verification attempts by outcome.
type RedemptionMetrics struct {
	outcomes *prometheus.CounterVec
	value    *prometheus.CounterVec
}

// NewRedemptionMetrics registers the redemption counters on the provided registerer.
func NewRedemptionMetrics(reg prometheus.Registerer) *RedemptionMetrics {
	if reg == nil {
		return &RedemptionMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boost_redemptions_total",
		Help: "Redemption attempts by outcome.",
	}, []string{"outcome", "method"})
	value := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boost_ledger_amount_total",
		Help: "Amount billed through the ledger.",
	}, []string{"method"})
	reg.MustRegister(outcomes, value)
	return &RedemptionMetrics{outcomes: outcomes, value: value}
}

// IncOutcome records one redemption attempt.
func (m *RedemptionMetrics) IncOutcome(outcome, method string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome), normalizeLabel(method)).Inc()
}

// AddBilled adds a ledger amount.
func (m *RedemptionMetrics) AddBilled(method string, amount float64) {
	if m == nil || m.value == nil || amount <= 0 {
		return
	}
	m.value.WithLabelValues(normalizeLabel(method)).Add(amount)
}

// OutboxMetrics counts publisher results per topic.
type OutboxMetrics struct {
	published *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox counters on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boost_outbox_publish_total",
		Help: "Outbox publish attempts by topic and result.",
	}, []string{"topic", "result"})
	reg.MustRegister(published)
	return &OutboxMetrics{published: published}
}

// ObservePublish records a publish result for topic.
func (m *OutboxMetrics) ObservePublish(topic, result string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(topic), normalizeLabel(result)).Inc()
}
