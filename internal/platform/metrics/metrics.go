package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	OrdersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qrstock_orders_created_total",
		Help: "Purchase orders created.",
	})

	EventsAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrstock_order_events_appended_total",
			Help: "Order audit events appended, by kind.",
		},
		[]string{"kind"},
	)

	PageCacheInvalidations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qrstock_page_cache_invalidations_total",
		Help: "Rendered-page cache entries invalidated.",
	})

	SinkEventsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrstock_sink_events_applied_total",
			Help: "Order events applied by the stock sink, by kind.",
		},
		[]string{"kind"},
	)
)

// Init registers all collectors with the default registry. Call once per process.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		OrdersCreated,
		EventsAppended,
		PageCacheInvalidations,
		SinkEventsApplied,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps a handler with RPS, latency and in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
