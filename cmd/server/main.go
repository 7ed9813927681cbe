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

	"conference/internal/config"
	"conference/internal/consul"
	"conference/internal/database"
	"conference/internal/logger"
	"conference/internal/server"
	"conference/internal/session"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	logger.SetDefault(log)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	slog.Info("Starting conference server",
		"port", cfg.Port,
		"env", cfg.AppEnv,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Database and schema first; the process cannot run without them
	db, err := database.New(startCtx, cfg.Database, log)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	// Session store is chosen once, before any route exists
	store := session.Resolve(startCtx, cfg.Redis, log)

	app := server.New(cfg, db, store, log)
	httpServer := app.HTTPServer()

	var registration *consul.Registration
	if cfg.ConsulAddr != "" {
		registration, err = consul.RegisterInstance(cfg.ConsulAddr, cfg.ConsulToken,
			consul.NewServiceConfig(cfg.ServiceHost, cfg.Port, string(store.Backend)), log)
		if err != nil {
			slog.Warn("Running without Consul registration", "error", err)
		}
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Conference server listening", "port", cfg.Port, "session_backend", store.Backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down conference server")

	registration.Close()

	// Graceful shutdown with timeout
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		slog.Error("Failed to close session store", "error", err)
	}

	if err := db.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}

	slog.Info("Conference server stopped")
}
