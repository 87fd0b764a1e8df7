package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IncidentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_incidents_ingested_total",
			Help: "Total incident reports accepted",
		},
		[]string{"incident_type", "auto_verified"},
	)

	IncidentsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_incidents_rejected_total",
			Help: "Total incident reports rejected at the ingestion boundary",
		},
		[]string{"reason"},
	)

	VerificationScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_verification_score",
			Help:    "Aggregate verification scores at submission time",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	CorroborationCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_corroboration_count",
			Help:    "Nearby same-type report counts found during scoring",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	ScoringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_scoring_duration_seconds",
			Help:    "Verification scoring duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	ReviewDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_review_decisions_total",
			Help: "Total reviewer confirm/reject decisions",
		},
		[]string{"outcome"},
	)

	TrustUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_trust_updates_total",
			Help: "Total reporter trust score recomputations",
		},
	)

	GeocodeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_geocode_failures_total",
			Help: "Total reverse-geocode lookups that fell back or failed",
		},
	)

	StatsCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_stats_cache_total",
			Help: "Statistics cache lookups by result",
		},
		[]string{"result"},
	)

	StreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_stream_clients",
			Help: "Connected live-feed websocket clients",
		},
	)
)

func Init() {
	prometheus.MustRegister(IncidentsIngested)
	prometheus.MustRegister(IncidentsRejected)
	prometheus.MustRegister(VerificationScore)
	prometheus.MustRegister(CorroborationCount)
	prometheus.MustRegister(ScoringDuration)
	prometheus.MustRegister(ReviewDecisions)
	prometheus.MustRegister(TrustUpdates)
	prometheus.MustRegister(GeocodeFailures)
	prometheus.MustRegister(StatsCacheHits)
	prometheus.MustRegister(StreamClients)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
