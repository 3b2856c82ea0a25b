package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ai_chat/internal/config"
	"ai_chat/internal/httpapi"
	"ai_chat/internal/logging"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warningf("Failed to read .env: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Local {
		logging.SetLogLevel(logging.Debug)
	} else {
		logging.SetLogLevel(logging.ParseLevel(cfg.LogLevel))
	}

	if !cfg.AuthEnabled() {
		logging.Warningf("JWT_SECRET is not set, chat requests are served anonymously")
	}

	// Background work stops when the server shuts down
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	deps, err := httpapi.NewDependencies(workerCtx, cfg)
	if err != nil {
		logging.Fatalf("Failed to build dependencies: %v", err)
	}

	// Create HTTP server
	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:    addr,
		Handler: httpapi.NewRouter(cfg, deps),
		// Provider calls plus the fallback delay must fit in a write
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Provider.RequestTimeout*4 + cfg.Fallback.MaxDelay + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logging.Infof("AI chat service listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Infof("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logging.Errorf("Server forced to shutdown: %v", err)
	}

	// Drain queued dispatch records, then close stores
	if err := deps.Close(); err != nil {
		logging.Errorf("Failed to close dependencies: %v", err)
	}

	logging.Infof("Server exited")
}
