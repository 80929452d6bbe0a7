// Package metrics exposes Prometheus instrumentation for window
// lifecycle, netting efficiency, reconciliation drift, and circuit
// breaker state, grounded on smallbiznis-valora's prometheus/client_golang
// wiring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WindowsOpened counts clearing windows opened per region.
	WindowsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "clearing",
		Name:      "windows_opened_total",
		Help:      "Clearing windows opened, by region.",
	}, []string{"region"})

	// WindowsCompleted counts windows reaching each terminal state.
	WindowsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "clearing",
		Name:      "windows_completed_total",
		Help:      "Clearing windows reaching a terminal state, by region and outcome.",
	}, []string{"region", "outcome"})

	// NettingEfficiency observes the efficiency ratio produced by NO per window.
	NettingEfficiency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nexus",
		Subsystem: "clearing",
		Name:      "netting_efficiency_ratio",
		Help:      "Netting efficiency ratio (0..1) per window close, by currency.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"currency"})

	// ObligationsNetted counts obligations folded into net positions.
	ObligationsNetted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "clearing",
		Name:      "obligations_netted_total",
		Help:      "Obligations processed by the netting optimizer, by currency.",
	}, []string{"currency"})

	// PaymentsByState counts payment pipeline transitions.
	PaymentsByState = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "payment",
		Name:      "state_transitions_total",
		Help:      "Payment state machine transitions, by resulting state.",
	}, []string{"state"})

	// CompensationsRun counts compensating-action invocations by stage.
	CompensationsRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "payment",
		Name:      "compensations_total",
		Help:      "Compensation (inverse) actions executed, by originating stage.",
	}, []string{"stage"})

	// ReconDrift observes the |ledger-bank|/bank diff per reconciliation pass.
	ReconDrift = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nexus",
		Subsystem: "reconciliation",
		Name:      "drift_ratio",
		Help:      "Reconciliation drift ratio observed per account check, by tier.",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
	}, []string{"tier"})

	// CircuitBreakerState is 1 when an EMI account's breaker is open, else 0.
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nexus",
		Subsystem: "reconciliation",
		Name:      "circuit_breaker_open",
		Help:      "1 if the EMI account circuit breaker is open, 0 otherwise.",
	}, []string{"account_id"})

	// DiscrepanciesOpened counts discrepancies recorded, by severity.
	DiscrepanciesOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "reconciliation",
		Name:      "discrepancies_opened_total",
		Help:      "Discrepancies opened, by severity and type.",
	}, []string{"severity", "type"})
)
