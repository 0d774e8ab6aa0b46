// Package stream implements Server-Sent Events (SSE) streaming of live
// pointing solutions. An antenna controller connects via
// GET /api/v1/stream/pointing?target=NAME&step=1 and receives one solution
// per step until it disconnects.
//
// SSE message format:
//
//	data: {"type":"pointing","t":"2026-10-19T12:00:01Z","target":"cn-tower","az":78.167,"el":-0.276,"range":95449.4}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","session":"...","target":"cn-tower","site":{"lat":43.4723,"lon":-80.5449,"h":300},"step_seconds":1}\n\n
//
// When the target is deleted mid-stream a final error message is sent and
// the stream ends:
//
//	data: {"type":"error","error":"..."}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval of silence.
package stream

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/httputil"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/metrics"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/track"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per client IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	BandwidthLimit     int           // Bytes per second per stream, 0 for unlimited (default: 65536).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	Step               time.Duration // Default solution interval (default: 1s).
	TrustProxy         bool          // Key limits on X-Forwarded-For / X-Real-IP.
}

// Handler manages SSE pointing streams.
type Handler struct {
	store   *track.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(store *track.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
}

// HandlePointing serves the SSE pointing stream.
// GET /api/v1/stream/pointing?target=NAME&step=1
func (h *Handler) HandlePointing(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("target")
	if name == "" {
		httputil.WriteError(w, http.StatusBadRequest, "missing target parameter")
		return
	}

	step := max(int(h.config.Step/time.Second), 1)
	if v := r.URL.Query().Get("step"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid step parameter, must be 1-60")
			return
		}
		step = n
	}

	if _, ok := h.store.Target(name); !ok {
		httputil.WriteError(w, http.StatusNotFound, fmt.Sprintf("unknown target %q", name))
		return
	}
	site := h.store.Site()
	if site == nil {
		httputil.WriteError(w, http.StatusConflict, "tracker site is not configured")
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	session := uuid.NewString()
	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"session", session,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"target", name,
		"step", step,
	)

	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"session", session,
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Long-lived stream: drop the server-wide WriteTimeout, per-write
	// deadlines are set by the client.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	ctx := r.Context()
	c := newClient(ctx, w, flusher, rc, h.config.BandwidthLimit, h.logger)

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	if err := c.sendRetry(3000 + rand.IntN(4000)); err != nil {
		metrics.IncStreamErrors("send_error")
		return
	}

	meta := metadataMessage{
		Type:        "metadata",
		Session:     session,
		Target:      name,
		Site:        sitePayload{Lat: site.LatitudeDeg, Lon: site.LongitudeDeg, H: site.HeightM},
		StepSeconds: step,
	}
	if err := c.sendJSON(meta); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "session", session, "error", err)
		return
	}

	// First solution goes out immediately so a controller can slew before
	// the first tick.
	if !h.sendPointing(c, name, session) {
		return
	}

	ticker := time.NewTicker(time.Duration(step) * time.Second)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if !h.sendPointing(c, name, session) {
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "session", session, "error", err)
				return
			}
		}
	}
}

// sendPointing solves and sends one pointing message. It returns false when
// the stream should end.
func (h *Handler) sendPointing(c *client, name, session string) bool {
	p, err := h.store.Point(name)
	if err != nil {
		metrics.IncStreamErrors("solve_error")
		h.logger.Warn("stream solve failed", "session", session, "target", name, "error", err)
		if err := c.sendJSON(errorMessage{Type: "error", Error: err.Error()}); err != nil {
			metrics.IncStreamErrors("send_error")
		}
		return false
	}

	if err := c.sendJSON(buildPointingMessage(p)); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error", "session", session, "error", err)
		return false
	}
	return true
}

func buildPointingMessage(p track.Pointing) pointingMessage {
	return pointingMessage{
		Type:   "pointing",
		T:      p.Time.UTC().Format(time.RFC3339),
		Target: p.Target,
		Az:     p.AzimuthDeg,
		El:     p.ElevationDeg,
		Range:  p.RangeM,
	}
}

// SSE message payload types.

type metadataMessage struct {
	Type        string      `json:"type"`
	Session     string      `json:"session"`
	Target      string      `json:"target"`
	Site        sitePayload `json:"site"`
	StepSeconds int         `json:"step_seconds"`
}

type sitePayload struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	H   float64 `json:"h"`
}

type pointingMessage struct {
	Type   string  `json:"type"`
	T      string  `json:"t"`
	Target string  `json:"target"`
	Az     float64 `json:"az"`
	El     float64 `json:"el"`
	Range  float64 `json:"range"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
