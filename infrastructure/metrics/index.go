// Package metrics exposes Prometheus instrumentation for liveness sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsTotal counts finished sessions by verdict.
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateman",
			Subsystem: "liveness",
			Name:      "sessions_total",
			Help:      "Finished liveness sessions by verdict.",
		},
		[]string{"verdict"},
	)

	// IndicatorFailuresTotal counts non-real readings per signal extractor.
	IndicatorFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateman",
			Subsystem: "liveness",
			Name:      "indicator_failures_total",
			Help:      "Signal extractor readings that flagged a spoof, by indicator.",
		},
		[]string{"indicator"},
	)

	SessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gateman",
			Subsystem: "liveness",
			Name:      "session_duration_seconds",
			Help:      "Wall time from session start to verdict.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60, 90},
		},
	)

	RiskScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gateman",
			Subsystem: "liveness",
			Name:      "risk_score",
			Help:      "Final accumulated spoof risk score per session.",
			Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 80, 100},
		},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsTotal,
		IndicatorFailuresTotal,
		SessionDuration,
		RiskScore,
	)
}

// ObserveSession records the verdict, duration and risk score of one finished session.
func ObserveSession(verdict string, duration time.Duration, score float64) {
	SessionsTotal.WithLabelValues(verdict).Inc()
	SessionDuration.Observe(duration.Seconds())
	RiskScore.Observe(score)
}

func ObserveIndicatorFailure(indicator string) {
	IndicatorFailuresTotal.WithLabelValues(indicator).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
