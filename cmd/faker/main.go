package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/aq"
	"github.com/aqlens/airsync/internal/config"
	"github.com/aqlens/airsync/internal/data"
	"github.com/aqlens/airsync/internal/server"
	"github.com/aqlens/airsync/internal/ws"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Setup logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	// Load config
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return 1
	}

	logger.Info("configuration loaded",
		zap.String("port", cfg.Port),
		zap.Int64("seed", cfg.Seed),
		zap.Int("locations", len(cfg.Locations)),
		zap.Bool("wsEnabled", cfg.WSEnabled),
		zap.Duration("wsStreamInterval", cfg.WSStreamInterval),
	)

	// Snapshot source and the cache the pull endpoint reads
	generator := aq.NewGenerator(cfg.Seed)
	cache := data.NewLatestCache()

	// Create server
	srv := server.NewServer(cache, cfg, logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The hub and streamer always run: without ticks the pull endpoint has
	// no data. WS_ENABLED only controls whether /ws is exposed.
	hub := ws.NewHub(cfg.Locations, logger)
	go hub.Run(ctx)

	streamer := ws.NewStreamer(hub, generator, cache, cfg.Locations, cfg.WSStreamInterval, logger)
	go streamer.Run(ctx)

	// Create router
	wsHub := hub
	if !cfg.WSEnabled {
		wsHub = nil
	}
	router := server.NewRouter(srv, wsHub, logger)

	// Setup HTTP server
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Cancel context to stop hub and streamer
	cancel()

	// Graceful HTTP server shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return 1
	}

	logger.Info("server stopped")
	return 0
}
