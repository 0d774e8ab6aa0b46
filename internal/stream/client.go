package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/metrics"
)

// Burst floor for the bandwidth limiter. Every message the stream sends is
// far smaller, so WaitN never rejects one outright.
const maxMessageBytes = 4096

const writeTimeout = 30 * time.Second

// client manages a single SSE connection's write operations.
type client struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	bw      *rate.Limiter
	logger  *slog.Logger

	messagesSent int64
	bytesSent    int64
}

func newClient(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, rc *http.ResponseController, bytesPerSecond int, logger *slog.Logger) *client {
	return &client{
		ctx:     ctx,
		w:       w,
		flusher: flusher,
		rc:      rc,
		bw:      newBandwidthLimiter(bytesPerSecond),
		logger:  logger,
	}
}

func newBandwidthLimiter(bytesPerSecond int) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, maxMessageBytes)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), max(bytesPerSecond, maxMessageBytes))
}

// sendJSON marshals v as JSON and sends it as an SSE "data:" message.
// SSE format: "data: {json}\n\n"
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := c.write(fmt.Sprintf("data: %s\n\n", data)); err != nil {
		return err
	}
	c.messagesSent++
	metrics.IncStreamMessages()
	return nil
}

// sendKeepalive sends an SSE comment line to keep the connection alive.
func (c *client) sendKeepalive() error {
	if err := c.write(":\n\n"); err != nil {
		return fmt.Errorf("keepalive: %w", err)
	}
	return nil
}

// sendRetry sets the client's reconnection delay.
func (c *client) sendRetry(ms int) error {
	return c.write(fmt.Sprintf("retry: %d\n\n", ms))
}

func (c *client) write(msg string) error {
	if err := c.bw.WaitN(c.ctx, len(msg)); err != nil {
		return fmt.Errorf("bandwidth wait: %w", err)
	}

	// Extend the deadline before each write; the stream has no overall one.
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}

	n, err := fmt.Fprint(c.w, msg)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	c.flusher.Flush()
	c.bytesSent += int64(n)
	metrics.AddStreamBytes(int64(n))
	return nil
}
