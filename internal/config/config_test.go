package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/azel"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.TrustProxy)
	assert.False(t, cfg.Auth.Enabled)
	assert.Nil(t, cfg.Site)
	assert.Empty(t, cfg.Targets)

	assert.Equal(t, 10, cfg.Stream.MaxConcurrentPerIP)
	assert.Equal(t, 1000, cfg.Stream.MaxTotal)
	assert.Equal(t, 65536, cfg.Stream.BandwidthLimit)
	assert.Equal(t, 30*time.Second, cfg.Stream.KeepaliveInterval)
	assert.Equal(t, time.Second, cfg.Stream.Step)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TRACKER_HTTP_ADDR", ":9090")
	t.Setenv("TRACKER_LOG_LEVEL", "debug")
	t.Setenv("TRACKER_TRUST_PROXY", "true")
	t.Setenv("TRACKER_AUTH_ENABLED", "1")
	t.Setenv("TRACKER_AUTH_TOKEN", "s3cret")
	t.Setenv("TRACKER_STREAM_MAX_CONCURRENT", "3")
	t.Setenv("TRACKER_STREAM_KEEPALIVE_INTERVAL", "15")
	t.Setenv("TRACKER_STREAM_STEP", "2s")
	t.Setenv("TRACKER_SITE_LAT", "43.4723")
	t.Setenv("TRACKER_SITE_LON", "-80.5449")
	t.Setenv("TRACKER_SITE_HEIGHT", "300")

	cfg, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.TrustProxy)
	assert.True(t, cfg.Stream.TrustProxy)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "s3cret", cfg.Auth.Token)
	assert.Equal(t, 3, cfg.Stream.MaxConcurrentPerIP)
	assert.Equal(t, 15*time.Second, cfg.Stream.KeepaliveInterval)
	assert.Equal(t, 2*time.Second, cfg.Stream.Step)

	require.NotNil(t, cfg.Site)
	assert.Equal(t, azel.GeodeticPosition{LatitudeDeg: 43.4723, LongitudeDeg: -80.5449, HeightM: 300}, *cfg.Site)
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("TRACKER_STREAM_MAX_CONCURRENT", "lots")
	t.Setenv("TRACKER_STREAM_BANDWIDTH_LIMIT", "-5")
	t.Setenv("TRACKER_STREAM_KEEPALIVE_INTERVAL", "soon")
	t.Setenv("TRACKER_STREAM_STEP", "10ms")
	t.Setenv("TRACKER_LOG_LEVEL", "chatty")
	t.Setenv("TRACKER_TRUST_PROXY", "maybe")

	cfg, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Stream.MaxConcurrentPerIP)
	assert.Equal(t, 65536, cfg.Stream.BandwidthLimit)
	assert.Equal(t, 30*time.Second, cfg.Stream.KeepaliveInterval)
	assert.Equal(t, time.Second, cfg.Stream.Step)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.TrustProxy)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"auth without token", map[string]string{"TRACKER_AUTH_ENABLED": "true"}},
		{"auth not boolean", map[string]string{"TRACKER_AUTH_ENABLED": "yes please"}},
		{"site latitude only", map[string]string{"TRACKER_SITE_LAT": "43.4723"}},
		{"site latitude not a number", map[string]string{"TRACKER_SITE_LAT": "north", "TRACKER_SITE_LON": "0"}},
		{"site out of range", map[string]string{"TRACKER_SITE_LAT": "91", "TRACKER_SITE_LON": "0"}},
		{"site height not a number", map[string]string{"TRACKER_SITE_LAT": "1", "TRACKER_SITE_LON": "0", "TRACKER_SITE_HEIGHT": "tall"}},
		{"missing config file", map[string]string{"TRACKER_CONFIG_FILE": "/nonexistent/tracker.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(testLogger())
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":7070"
stream:
  step: 5
site:
  lat: 43.4723
  lon: -80.5449
  height: 300
targets:
  - name: cn-tower
    lat: 43.6426
    lon: -79.3871
    h: 553.3
  - name: launch-rail
    lat: 32.9401
    lon: -106.9196
`), 0o600))
	t.Setenv("TRACKER_CONFIG_FILE", path)
	t.Setenv("TRACKER_HTTP_ADDR", ":6060")

	cfg, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, ":6060", cfg.HTTPAddr, "environment overrides the file")
	assert.Equal(t, 5*time.Second, cfg.Stream.Step)
	require.NotNil(t, cfg.Site)
	assert.Equal(t, 43.4723, cfg.Site.LatitudeDeg)
	assert.Equal(t, 300.0, cfg.Site.HeightM)

	require.Len(t, cfg.Targets, 2)
	assert.Equal(t, "cn-tower", cfg.Targets[0].Name)
	assert.Equal(t, azel.GeodeticPosition{LatitudeDeg: 43.6426, LongitudeDeg: -79.3871, HeightM: 553.3}, cfg.Targets[0].Position())
	assert.Equal(t, "launch-rail", cfg.Targets[1].Name)
	assert.Zero(t, cfg.Targets[1].H)
}

func TestLoadConfigFileBadTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
targets:
  - name: bad
    lat: 120
    lon: 0
`), 0o600))
	t.Setenv("TRACKER_CONFIG_FILE", path)

	_, err := Load(testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, azel.ErrOutOfRange)
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "TRACKER_STREAM_MAX_CONCURRENT", envName("stream.max_concurrent"))
	assert.Equal(t, "TRACKER_TRUST_PROXY", envName("trust_proxy"))
}
