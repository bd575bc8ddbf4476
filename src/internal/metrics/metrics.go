package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ClaimAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_claim_attempts_total",
			Help: "Claim attempts by outcome",
		},
		[]string{"outcome"},
	)

	ClaimReleases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_claim_releases_total",
			Help: "Claim releases by outcome",
		},
		[]string{"outcome"},
	)

	DecisionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_decisions_recorded_total",
			Help: "Decision events appended, by decision",
		},
		[]string{"decision"},
	)

	QueueSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review_queue_size",
			Help:    "Number of applications returned per queue request",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
		[]string{"branch"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_store_errors_total",
			Help: "Application store failures seen by the review service",
		},
		[]string{"operation", "kind"},
	)

	RosterEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "review_roster_entries",
			Help: "Entries in the current roster snapshot",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "review_http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "route", "status"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
