package smatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SmatchPairsTotal counts compared graph pairs by outcome
	SmatchPairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smatch_pairs_total",
			Help: "Total number of graph pairs compared",
		},
		[]string{"status"},
	)

	// SmatchRestartsTotal counts hill-climbing runs by start strategy
	SmatchRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smatch_restarts_total",
			Help: "Total number of hill-climbing runs",
		},
		[]string{"strategy"},
	)

	// SmatchMovesTotal counts applied improving moves
	SmatchMovesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "smatch_moves_total",
			Help: "Total number of improving moves applied",
		},
	)

	// SmatchTimeoutsTotal counts pairs whose search hit the time budget
	SmatchTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "smatch_search_timeouts_total",
			Help: "Total number of pair searches stopped by the time budget",
		},
	)

	// SmatchSearchSeconds tracks the duration of one pair search
	SmatchSearchSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smatch_search_seconds",
			Help:    "Duration of the correspondence search for one graph pair",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(SmatchPairsTotal)
	prometheus.MustRegister(SmatchRestartsTotal)
	prometheus.MustRegister(SmatchMovesTotal)
	prometheus.MustRegister(SmatchTimeoutsTotal)
	prometheus.MustRegister(SmatchSearchSeconds)
}
