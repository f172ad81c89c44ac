package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rerunOutcomeCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "studio",
		Subsystem: "rerun",
		Name:      "outcome_total",
		Help:      "Number of course rerun tasks by outcome.",
	},
	[]string{"outcome"},
)

var rerunDurationHistogram = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "studio",
		Subsystem: "rerun",
		Name:      "duration_seconds",
		Help:      "Duration of course rerun tasks.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	},
	[]string{"outcome"},
)

func IncRerunOutcome(outcome string) {
	rerunOutcomeCounter.WithLabelValues(outcome).Inc()
}

func ObserveRerunDuration(outcome string, seconds float64) {
	rerunDurationHistogram.WithLabelValues(outcome).Observe(seconds)
}
