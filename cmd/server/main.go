package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hideo54/image-adjuster/internal/adapter/httpserver"
	"github.com/hideo54/image-adjuster/internal/adapter/metrics"
	"github.com/hideo54/image-adjuster/internal/adapter/websocket"
	"github.com/hideo54/image-adjuster/internal/app"
	"github.com/hideo54/image-adjuster/internal/imageseq"
	"github.com/hideo54/image-adjuster/internal/platform/config"
	"github.com/hideo54/image-adjuster/internal/platform/logging"
	"github.com/hideo54/image-adjuster/internal/platform/version"
	"github.com/jonboulle/clockwork"
)

const shutdownTimeout = 10 * time.Second

func runGracefulShutdown(srv *httpserver.Server, registry *app.Registry, hub *websocket.Hub, stopReaper context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopReaper()
		hub.Stop()
		registry.CloseAll()

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func checkImages(seq *imageseq.Sequence) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Missing images only degrade rendering, so this is a warning, not a failure.
	if err := seq.Check(ctx); err != nil {
		slog.Warn("Image sequence incomplete", "dir", seq.Dir, "error", err)
		return
	}
	slog.Info("Image sequence found", "dir", seq.Dir, "images", seq.Len())
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "version", version.Get().String(), "env", cfg.AppEnv, "port", cfg.Port)

	seq := imageseq.New(cfg.ImageDir, cfg.ImageExt, cfg.MaxIndex)
	checkImages(seq)

	m := metrics.New()

	// The hub and the registry refer to each other: sessions publish through the
	// hub, and the hub closes a session once its last viewer leaves.
	var registry *app.Registry
	onSessionEmpty := func(sessionID uuid.UUID) { registry.Remove(sessionID) }
	hub := websocket.NewHub(clock, cfg.MaxClientsPerSession, onSessionEmpty, m.WebSocket)

	registry = app.NewRegistry(app.SessionOptions{
		MaxIndex:      cfg.MaxIndex,
		BlinkInterval: cfg.BlinkInterval,
		Images:        seq,
	}, clock, hub, m.Session)

	healthChecks := []httpserver.HealthCheck{
		{Name: "image_sequence", Check: seq.Check},
	}

	srv, err := httpserver.NewServer(cfg, registry, hub, m.HTTP, m.Handler(), healthChecks)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	go registry.RunReaper(reaperCtx, cfg.UnviewedSessionTTL)

	done := runGracefulShutdown(srv, registry, hub, stopReaper)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
