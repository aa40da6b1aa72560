// Package metrics holds the Prometheus collectors used across the server. All
// of them register with the default registry, exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinepuma_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"})

	CatalogFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinepuma_catalog_fetch_total",
			Help: "Metadata API fetches by operation and outcome.",
		}, []string{"op", "outcome"})

	ReviewSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinepuma_review_submissions_total",
			Help: "Review submissions by outcome.",
		}, []string{"outcome"})

	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinepuma_auth_attempts_total",
			Help: "Authentication calls by operation and outcome.",
		}, []string{"op", "outcome"})

	LiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinepuma_live_connections",
			Help: "Open review websocket connections.",
		})

	SnapshotsPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cinepuma_review_snapshots_total",
			Help: "Review snapshots received from the document store.",
		})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		CatalogFetchTotal,
		ReviewSubmissionsTotal,
		AuthAttemptsTotal,
		LiveConnections,
		SnapshotsPublishedTotal,
	)
}

// Outcome maps an error to a low-cardinality label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
