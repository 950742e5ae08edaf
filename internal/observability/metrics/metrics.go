// Package metrics defines Prometheus instrumentation for the ingest and
// correlation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Suppression reason labels.
const (
	ReasonThrottle  = "throttle"
	ReasonDedup     = "dedup"
	ReasonThreshold = "threshold"
)

// CorrelationMetrics tracks pipeline outcomes.
type CorrelationMetrics struct {
	EventsIngested prometheus.Counter
	IngestFailures prometheus.Counter
	AlertsCreated  prometheus.Counter
	RulesEvaluated prometheus.Counter
	Suppressions   *prometheus.CounterVec
}

// NewCorrelationMetrics creates and registers the pipeline metrics.
func NewCorrelationMetrics(reg prometheus.Registerer) *CorrelationMetrics {
	factory := promauto.With(reg)
	return &CorrelationMetrics{
		EventsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_events_ingested_total",
			Help: "Events successfully persisted and evaluated.",
		}),
		IngestFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_ingest_failures_total",
			Help: "Ingestions rolled back due to an error.",
		}),
		AlertsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_alerts_created_total",
			Help: "Alerts created by the correlation engine.",
		}),
		RulesEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_rules_evaluated_total",
			Help: "Rule evaluations performed across all ingested events.",
		}),
		Suppressions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_suppressions_total",
			Help: "Alerts suppressed by policy, labeled by reason.",
		}, []string{"reason"}),
	}
}

// RecordSuppression increments the suppression counter for a reason.
// Nil-safe so the engine can run without metrics in tests.
func (m *CorrelationMetrics) RecordSuppression(reason string) {
	if m == nil {
		return
	}
	m.Suppressions.WithLabelValues(reason).Inc()
}
