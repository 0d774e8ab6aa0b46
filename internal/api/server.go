package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/auth"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/health"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/metrics"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/stream"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/track"
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, store *track.Store, streamHandler *stream.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           newHandler(logger, authCfg, store, streamHandler),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

func newHandler(logger *slog.Logger, authCfg auth.Config, store *track.Store, streamHandler *stream.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool { return store.Site() != nil }))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/solve", solveQueryHandler(logger))
	mux.HandleFunc("POST /api/v1/solve", solveBodyHandler(logger))

	mux.HandleFunc("GET /api/v1/site", getSiteHandler(store))
	mux.HandleFunc("PUT /api/v1/site", putSiteHandler(logger, store))

	mux.HandleFunc("GET /api/v1/targets", listTargetsHandler(store))
	mux.HandleFunc("PUT /api/v1/targets/{name}", putTargetHandler(logger, store))
	mux.HandleFunc("DELETE /api/v1/targets/{name}", deleteTargetHandler(logger, store))
	mux.HandleFunc("GET /api/v1/targets/{name}/pointing", pointingHandler(store))

	mux.HandleFunc("GET /api/v1/stream/pointing", streamHandler.HandlePointing)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
