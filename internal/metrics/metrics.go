package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the two write paths and the background loops.

var (
	PopOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "queuechain",
		Subsystem: "advancer",
		Name:      "pop_outcomes_total",
		Help:      "Queue advance attempts partitioned by outcome",
	}, []string{"outcome"})

	BidsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "queuechain",
		Subsystem: "bidding",
		Name:      "bids_submitted_total",
		Help:      "Bid transactions confirmed on-chain",
	})

	BidFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "queuechain",
		Subsystem: "bidding",
		Name:      "bid_failures_total",
		Help:      "Bid submissions that failed at any stage",
	})

	RefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "queuechain",
		Subsystem: "refresh",
		Name:      "failures_total",
		Help:      "Background refresh probes that failed",
	})
)
