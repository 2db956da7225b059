// Package metrics holds the Prometheus collectors exported by tender-cli.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeEmpty   = "empty"
)

var (
	GatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_gateway_calls_total",
			Help: "Reasoning and search gateway calls by outcome",
		},
		[]string{"gateway", "op", "outcome"},
	)

	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tender_gateway_call_duration_seconds",
			Help:    "Latency of gateway calls",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"gateway", "op"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tender_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"stage"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_runs_total",
			Help: "Pipeline runs by final status",
		},
		[]string{"status"},
	)

	SearchHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_search_hits_total",
			Help: "Search results returned per backend before filtering",
		},
		[]string{"backend"},
	)

	SiteFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_site_fetches_total",
			Help: "Candidate page fetches by outcome",
		},
		[]string{"outcome"},
	)

	FilesNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_files_normalized_total",
			Help: "Bundle files by source extension and conversion outcome",
		},
		[]string{"kind", "outcome"},
	)

	SpendUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_spend_usd_total",
			Help: "Estimated paid API spend",
		},
		[]string{"service", "op"},
	)

	TendersDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tender_discovered_total",
			Help: "New tender records created by the discovery feed",
		},
	)
)

// ObserveGateway records one gateway call.
func ObserveGateway(gateway, op, outcome string, started time.Time) {
	GatewayCalls.WithLabelValues(gateway, op, outcome).Inc()
	GatewayDuration.WithLabelValues(gateway, op).Observe(time.Since(started).Seconds())
}
