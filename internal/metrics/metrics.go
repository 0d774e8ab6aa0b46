package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	solvesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_solves_total",
			Help: "Line-of-sight solutions computed, by result.",
		},
		[]string{"result"},
	)

	targets = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_targets",
		Help: "Number of registered targets.",
	})

	siteConfigured = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_site_configured",
		Help: "1 when the antenna site position is known.",
	})

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_stream_connections_total",
			Help: "Pointing stream connects and disconnects.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_streams_active",
		Help: "Currently open pointing streams.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_stream_messages_total",
		Help: "SSE data messages sent.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_stream_bytes_total",
		Help: "Bytes written to pointing streams.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_stream_errors_total",
			Help: "Pointing stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		solvesTotal,
		targets,
		siteConfigured,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncSolves counts one solve with the given result ("ok", "invalid_input").
func IncSolves(result string) { solvesTotal.WithLabelValues(result).Inc() }

func SetTargets(n int) { targets.Set(float64(n)) }

func SetSiteConfigured(ok bool) {
	if ok {
		siteConfigured.Set(1)
		return
	}
	siteConfigured.Set(0)
}

// IncStreamConnections counts a stream "connect" or "disconnect" event.
func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }

func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }

func IncStreamMessages()     { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

var knownRoutes = map[string]bool{
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/solve":            true,
	"/api/v1/site":             true,
	"/api/v1/targets":          true,
	"/api/v1/stream/pointing": true,
}

// normalizeRoute maps a request path to a bounded set of metric labels.
// Target names are collapsed so that every target shares one label.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/targets/"); ok && rest != "" {
		name, sub, _ := strings.Cut(rest, "/")
		switch {
		case name == "":
		case sub == "":
			return "/api/v1/targets/{name}"
		case sub == "pointing":
			return "/api/v1/targets/{name}/pointing"
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers behind this middleware stream.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
