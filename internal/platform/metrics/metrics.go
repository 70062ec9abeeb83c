// Package metrics registers the bot's Prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotebot_commands_total",
			Help: "Total number of quote commands by terminal status and failure kind.",
		},
		[]string{"status", "failure"},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotebot_command_duration_seconds",
			Help:    "Quote command duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	UpstreamAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotebot_upstream_attempts_total",
			Help: "Market data provider attempts by outcome.",
		},
		[]string{"provider", "outcome"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotebot_cache_lookups_total",
			Help: "Quote cache lookups by tier and result.",
		},
		[]string{"tier", "result"},
	)

	CacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotebot_cache_evictions_total",
			Help: "Quote cache evictions by reason.",
		},
		[]string{"reason"},
	)

	QuotaDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotebot_quota_decisions_total",
			Help: "Quota ledger decisions by tier and result.",
		},
		[]string{"tier", "result"},
	)

	NarrativeResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotebot_narrative_results_total",
			Help: "Narrative enrichment outcomes.",
		},
		[]string{"result"},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotebot_operational_alerts_total",
			Help: "Operational alerts raised by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		CommandsTotal,
		CommandDuration,
		UpstreamAttempts,
		CacheLookups,
		CacheEvictions,
		QuotaDecisions,
		NarrativeResults,
		AlertsTotal,
	)
}
