package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	recalculationSeconds        *prometheus.HistogramVec
	recalculationStaleTotal     prometheus.Counter
	certificateFailuresTotal    prometheus.Counter
	certificationTransitions    *prometheus.CounterVec
	leaderboardSubscribersGauge prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors exposed by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		recalculationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scoring_recalculation_seconds",
			Help:    "Duration of score recalculations.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		}, []string{"scope", "outcome"})

		recalculationStaleTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoring_recalculation_stale_total",
			Help: "Recalculations retried after a serialization conflict.",
		})

		certificateFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoring_certificate_generation_failures_total",
			Help: "Certificate documents that could not be generated.",
		})

		certificationTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoring_certification_transitions_total",
			Help: "Certification status changes by target status.",
		}, []string{"status"})

		leaderboardSubscribersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leaderboard_stream_subscribers",
			Help: "Open leaderboard websocket subscriptions on this node.",
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			recalculationSeconds, recalculationStaleTotal, certificateFailuresTotal,
			certificationTransitions, leaderboardSubscribersGauge,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// RecalculationDuration exposes the recalculation latency histogram.
func RecalculationDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return recalculationSeconds
}

// RecalculationStale exposes the serialization-conflict retry counter.
func RecalculationStale() prometheus.Counter {
	RegisterMetrics()
	return recalculationStaleTotal
}

// CertificateFailures exposes the certificate generation failure counter.
func CertificateFailures() prometheus.Counter {
	RegisterMetrics()
	return certificateFailuresTotal
}

// CertificationTransitions exposes the certification status change counter.
func CertificationTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return certificationTransitions
}

// LeaderboardSubscribers exposes the websocket subscriber gauge.
func LeaderboardSubscribers() prometheus.Gauge {
	RegisterMetrics()
	return leaderboardSubscribersGauge
}
