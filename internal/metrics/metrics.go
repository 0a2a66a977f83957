// Package metrics exposes Prometheus instruments for settlements,
// notifications and the reconciliation job.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics groups the instruments. A nil *Metrics records nothing.
type Metrics struct {
	settlements        *prometheus.CounterVec
	settlementDuration *prometheus.HistogramVec
	notifications      *prometheus.CounterVec
	reconciled         *prometheus.CounterVec
	lineItems          *prometheus.CounterVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		settlements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dairy_settlements_total",
				Help: "Settlement attempts by flow and outcome",
			},
			[]string{"flow", "outcome"},
		),
		settlementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dairy_settlement_duration_seconds",
				Help:    "Time spent committing a settlement",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"flow"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dairy_notifications_total",
				Help: "Settlement notifications by sink and outcome",
			},
			[]string{"sink", "outcome"},
		),
		reconciled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dairy_reconciled_settlements_total",
				Help: "Pending settlements handled by the reconciliation job",
			},
			[]string{"flow", "outcome"},
		),
		lineItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dairy_line_items_total",
				Help: "Line item writes by flow and operation",
			},
			[]string{"flow", "operation"},
		),
	}
}

// ObserveSettlement records one settlement attempt.
func (m *Metrics) ObserveSettlement(flow, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(flow, outcome).Inc()
	if outcome == OutcomeOK {
		m.settlementDuration.WithLabelValues(flow).Observe(took.Seconds())
	}
}

// Notification records one sink delivery.
func (m *Metrics) Notification(sink, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(sink, outcome).Inc()
}

// Reconciled records one replayed or abandoned settlement.
func (m *Metrics) Reconciled(flow, outcome string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(flow, outcome).Inc()
}

// LineItem records one line item write.
func (m *Metrics) LineItem(flow, operation string) {
	if m == nil {
		return
	}
	m.lineItems.WithLabelValues(flow, operation).Inc()
}
