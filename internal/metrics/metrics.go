// Package metrics defines the Prometheus collectors exported by the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "allfence"

// Metrics groups every collector. Services receive it by pointer and may be
// given one built on a throwaway registry in tests.
type Metrics struct {
	Registrations      *prometheus.CounterVec
	ResultsRecorded    *prometheus.CounterVec
	Corrections        prometheus.Counter
	PointsAwarded      *prometheus.CounterVec
	RankingDrift       prometheus.Gauge
	RankingResets      prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration attempts by outcome.",
		}, []string{"outcome"}),
		ResultsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_recorded_total",
			Help:      "Placement records appended, by tournament tier.",
		}, []string{"tier"}),
		Corrections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_corrections_total",
			Help:      "Correction records appended.",
		}),
		PointsAwarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Ranking points awarded by placement records, by bracket.",
		}, []string{"bracket"}),
		RankingDrift: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ranking_drift_entries",
			Help:      "Ranking entries that disagreed with result history at the last consistency check.",
		}),
		RankingResets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_resets_total",
			Help:      "Times every ranking entry was zeroed.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// NewNop returns collectors on a private registry that is never scraped
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
