// Package metrics exposes Prometheus collectors for the simulator.
// Scraped through the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveChains tracks the number of devices currently generating.
	ActiveChains = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simulator_active_chains",
		Help: "Number of devices with a live generation chain.",
	})

	// TransactionsGenerated counts successful transaction writes by event type.
	TransactionsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simulator_transactions_generated_total",
		Help: "Total transactions written by generation chains.",
	}, []string{"event_type"})

	// GenerationFailures counts store writes that failed inside a chain.
	GenerationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simulator_generation_failures_total",
		Help: "Total transaction writes that failed and were skipped.",
	})

	// PublishFailures counts best-effort sink publishes that failed.
	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simulator_publish_failures_total",
		Help: "Total event publishes to external sinks that failed.",
	}, []string{"sink"})
)
