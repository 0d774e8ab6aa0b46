package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/api"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/config"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/stream"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/track"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	store, err := newStore(cfg, logger)
	if err != nil {
		logger.Error("invalid target configuration", "error", err)
		os.Exit(1)
	}

	streamHandler := stream.NewHandler(store, cfg.Stream, logger)
	srv := api.NewServer(cfg.HTTPAddr, logger, cfg.Auth, store, streamHandler)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTPAddr,
			"auth_enabled", cfg.Auth.Enabled,
			"site_configured", store.Site() != nil,
			"targets", store.Len(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// newStore seeds a store with the configured site and targets.
func newStore(cfg config.Config, logger *slog.Logger) (*track.Store, error) {
	store := track.NewStore()
	if cfg.Site != nil {
		store.SetSite(*cfg.Site)
		logger.Info("site configured",
			"lat", cfg.Site.LatitudeDeg,
			"lon", cfg.Site.LongitudeDeg,
			"h", cfg.Site.HeightM,
		)
	} else {
		logger.Warn("no site configured, pointing is unavailable until PUT /api/v1/site")
	}

	for _, t := range cfg.Targets {
		if _, err := store.SetTarget(t.Name, t.Position()); err != nil {
			return nil, err
		}
		logger.Info("target registered", "target", t.Name)
	}
	return store, nil
}
