package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
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
)

// Venue domain metrics.
var (
	accessDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_decisions_total",
			Help: "Access decisions rendered, by verdict and method.",
		},
		[]string{"verdict", "method"},
	)

	rosterPeople = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roster_people",
			Help: "Current roster size, by permission state.",
		},
		[]string{"access"},
	)

	importRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Bulk import rows processed, by outcome.",
		},
		[]string{"result"},
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		accessDecisions, rosterPeople, importRows,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDecision counts one rendered access decision.
func ObserveDecision(verdict, method string) {
	accessDecisions.WithLabelValues(verdict, method).Inc()
}

// SetRosterSize refreshes the roster gauges from a snapshot tally.
func SetRosterSize(withAccess, withoutAccess int) {
	rosterPeople.WithLabelValues("granted").Set(float64(withAccess))
	rosterPeople.WithLabelValues("denied").Set(float64(withoutAccess))
}

// CountImportRows adds processed bulk-import rows to the given outcome.
func CountImportRows(result string, n int) {
	if n <= 0 {
		return
	}
	importRows.WithLabelValues(result).Add(float64(n))
}

// CanonicalPath collapses per-person URL segments so metric labels stay
// bounded. "/v1/people/<id>" and "/v1/people/<id>/access" map onto ":id"
// forms; everything else is kept as-is with the query stripped.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) >= 3 && parts[0] == "v1" && parts[1] == "people" {
		switch len(parts) {
		case 3:
			return "/v1/people/:id"
		case 4:
			if parts[3] == "access" {
				return "/v1/people/:id/access"
			}
		}
	}
	return p
}

// Instrument wraps a handler with RPS, latency and in-flight tracking.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush lets instrumented handlers keep streaming responses (SSE).
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
