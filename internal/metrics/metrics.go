package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Game metrics
var (
	RacesStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikirace_races_started_total",
			Help: "Total number of races started",
		},
	)

	RacesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikirace_races_completed_total",
			Help: "Total number of races completed",
		},
		[]string{"winner", "trigger", "tier"},
	)

	RaceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wikirace_race_duration_seconds",
			Help:    "Wall time from race start to completion",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8), // 5s to ~10min
		},
	)

	SetupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikirace_setup_failures_total",
			Help: "Races that failed before entering in-progress",
		},
	)
)

// Agent metrics
var (
	Selections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikirace_link_selections_total",
			Help: "Link selections by resolution tier",
		},
		[]string{"tier"},
	)

	ReasonerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikirace_reasoner_errors_total",
			Help: "Reasoner calls that failed and fell back to a random pick, by reason",
		},
		[]string{"reason"},
	)

	NavigatorAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wikirace_navigator_attempts",
			Help:    "Attempts consumed by one agent run",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		},
	)

	NavigatorRecoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikirace_navigator_recoveries_total",
			Help: "Recovery attempts after a driver error",
		},
		[]string{"result"},
	)

	PollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikirace_poll_ticks_total",
			Help: "Agent session observations",
		},
		[]string{"status"},
	)
)

// ObserveSelection counts one link selection.
func ObserveSelection(tier string) {
	Selections.WithLabelValues(tier).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
