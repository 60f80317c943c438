package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	recomputesTotal     prometheus.Counter
	danglingItemsTotal  prometheus.Counter
	syncEventsTotal     *prometheus.CounterVec
	sseClientsActive    prometheus.Gauge
	rosterClientsActive prometheus.Gauge
	attemptsScoredTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the gradebook API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebook_requests_total",
			Help: "Total number of gradebook API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gradebook_latency_seconds",
			Help:    "Latency distribution for gradebook API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebook_errors_total",
			Help: "Total number of error responses returned by gradebook endpoints.",
		}, []string{"method", "route", "status"})

		recomputesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradebook_recomputes_total",
			Help: "Total number of gradebook summary recomputations.",
		})

		danglingItemsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradebook_dangling_items_total",
			Help: "Evaluation config entries skipped because their target no longer resolves.",
		})

		syncEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebook_sync_events_published_total",
			Help: "Change notifications fanned out by the realtime sync layer.",
		}, []string{"table"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gradebook_sse_clients_active",
			Help: "Currently connected change-stream subscribers.",
		})

		rosterClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gradebook_roster_ws_clients_active",
			Help: "Currently connected trainer roster websocket clients.",
		})

		attemptsScoredTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradebook_attempts_scored_total",
			Help: "Evaluation attempts auto-scored by the attempt engine.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			recomputesTotal, danglingItemsTotal, syncEventsTotal,
			sseClientsActive, rosterClientsActive, attemptsScoredTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Recomputes exposes the counter for summary recomputations.
func Recomputes() prometheus.Counter {
	RegisterMetrics()
	return recomputesTotal
}

// DanglingItems exposes the counter for skipped dangling config entries.
func DanglingItems() prometheus.Counter {
	RegisterMetrics()
	return danglingItemsTotal
}

// SyncEvents exposes the counter for published change notifications.
func SyncEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return syncEventsTotal
}

// SSEClientsActive exposes the gauge for connected change-stream subscribers.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// RosterClientsActive exposes the gauge for connected roster websocket clients.
func RosterClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return rosterClientsActive
}

// AttemptsScored exposes the counter for auto-scored attempts.
func AttemptsScored() prometheus.Counter {
	RegisterMetrics()
	return attemptsScoredTotal
}
