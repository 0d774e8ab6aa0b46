// Package config loads tracker settings from TRACKER_* environment
// variables and an optional config file named by TRACKER_CONFIG_FILE.
// Environment variables win over file values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/auth"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/azel"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/stream"
)

const envPrefix = "TRACKER"

// Config is the fully resolved tracker configuration.
type Config struct {
	HTTPAddr   string
	LogLevel   slog.Level
	TrustProxy bool
	Auth       auth.Config
	Stream     stream.Config
	Site       *azel.GeodeticPosition // nil when no site is configured
	Targets    []TargetConfig
}

// TargetConfig is a named target pre-registered from the config file.
type TargetConfig struct {
	Name string  `mapstructure:"name"`
	Lat  float64 `mapstructure:"lat"`
	Lon  float64 `mapstructure:"lon"`
	H    float64 `mapstructure:"h"`
}

// Position returns the target's geodetic position.
func (t TargetConfig) Position() azel.GeodeticPosition {
	return azel.GeodeticPosition{LatitudeDeg: t.Lat, LongitudeDeg: t.Lon, HeightM: t.H}
}

// Load reads the configuration. Malformed numeric values are logged and
// replaced by their defaults; malformed auth, site or target settings are
// errors.
func Load(logger *slog.Logger) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		logger.Info("config file loaded", "path", path)
	}

	cfg := Config{
		HTTPAddr:   v.GetString("http.addr"),
		LogLevel:   loadLogLevel(v, logger),
		TrustProxy: loadBool(v, logger, "trust_proxy", false),
	}

	var err error
	if cfg.Auth, err = loadAuth(v, logger); err != nil {
		return Config{}, err
	}
	cfg.Stream = loadStream(v, logger, cfg.TrustProxy)
	if cfg.Site, err = loadSite(v); err != nil {
		return Config{}, err
	}
	if cfg.Targets, err = loadTargets(v); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadLogLevel(v *viper.Viper, logger *slog.Logger) slog.Level {
	var level slog.Level
	raw := v.GetString("log.level")
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		logger.Warn("invalid TRACKER_LOG_LEVEL value, using default", "value", raw, "default", "info")
		return slog.LevelInfo
	}
	return level
}

func loadAuth(v *viper.Viper, logger *slog.Logger) (auth.Config, error) {
	var cfg auth.Config

	if raw := v.GetString("auth.enabled"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return cfg, errors.New("TRACKER_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = v.GetString("auth.token")
		if cfg.Token == "" {
			return cfg, errors.New("TRACKER_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}
	return cfg, nil
}

func loadStream(v *viper.Viper, logger *slog.Logger, trustProxy bool) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: loadPositiveInt(v, logger, "stream.max_concurrent", 10),
		MaxTotal:           loadPositiveInt(v, logger, "stream.max_total", 1000),
		BandwidthLimit:     loadPositiveInt(v, logger, "stream.bandwidth_limit", 65536),
		KeepaliveInterval:  loadDuration(v, logger, "stream.keepalive_interval", 30*time.Second),
		Step:               loadDuration(v, logger, "stream.step", time.Second),
		TrustProxy:         trustProxy,
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"bandwidth_limit", cfg.BandwidthLimit,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"step_seconds", cfg.Step.Seconds(),
	)
	return cfg
}

// loadSite returns nil when neither latitude nor longitude is set.
func loadSite(v *viper.Viper) (*azel.GeodeticPosition, error) {
	rawLat, rawLon := v.GetString("site.lat"), v.GetString("site.lon")
	if rawLat == "" && rawLon == "" {
		return nil, nil
	}
	if rawLat == "" || rawLon == "" {
		return nil, errors.New("TRACKER_SITE_LAT and TRACKER_SITE_LON must be set together")
	}

	var (
		site azel.GeodeticPosition
		err  error
	)
	if site.LatitudeDeg, err = strconv.ParseFloat(rawLat, 64); err != nil {
		return nil, fmt.Errorf("TRACKER_SITE_LAT: %w", err)
	}
	if site.LongitudeDeg, err = strconv.ParseFloat(rawLon, 64); err != nil {
		return nil, fmt.Errorf("TRACKER_SITE_LON: %w", err)
	}
	if raw := v.GetString("site.height"); raw != "" {
		if site.HeightM, err = strconv.ParseFloat(raw, 64); err != nil {
			return nil, fmt.Errorf("TRACKER_SITE_HEIGHT: %w", err)
		}
	}
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("site: %w", err)
	}
	return &site, nil
}

func loadTargets(v *viper.Viper) ([]TargetConfig, error) {
	var targets []TargetConfig
	if err := v.UnmarshalKey("targets", &targets); err != nil {
		return nil, fmt.Errorf("targets: %w", err)
	}
	for i, t := range targets {
		pos := t.Position()
		if err := pos.Validate(); err != nil {
			return nil, fmt.Errorf("targets[%d] %q: %w", i, t.Name, err)
		}
	}
	return targets, nil
}

func loadBool(v *viper.Viper, logger *slog.Logger, key string, def bool) bool {
	raw := v.GetString(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		logger.Warn("invalid "+envName(key)+" value, using default", "value", raw, "default", def)
		return def
	}
	return b
}

func loadPositiveInt(v *viper.Viper, logger *slog.Logger, key string, def int) int {
	raw := v.GetString(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		logger.Warn("invalid "+envName(key)+" value, using default", "value", raw, "default", def)
		return def
	}
	return n
}

// loadDuration accepts whole seconds ("30") or a Go duration ("1m30s").
func loadDuration(v *viper.Viper, logger *slog.Logger, key string, def time.Duration) time.Duration {
	raw := v.GetString(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		n, aerr := strconv.Atoi(raw)
		if aerr != nil {
			n = 0
		}
		d = time.Duration(n) * time.Second
	}
	if d < time.Second {
		logger.Warn("invalid "+envName(key)+" value, using default", "value", raw, "default", def.String())
		return def
	}
	return d
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
