// Command api is the farm alerts HTTP server. GET /run-alerts runs one
// batch; an optional in-process ticker runs batches on ALERT_INTERVAL.
//
// Usage:
//
//	farm-alerts-api
//	API_PORT=8080 ALERT_INTERVAL=6h farm-alerts-api

// @title KrishiSakhi Farm Alerts API
// @version 1.0.0
// @description Triggers the farm alert batch (weather and activity rules, saved and pushed per user) and single-user test notifications.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @contact.name KrishiSakhi
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/krishisakhi/farm-alerts/internal/api"
	"github.com/krishisakhi/farm-alerts/internal/api/handler"
	"github.com/krishisakhi/farm-alerts/internal/app"
	"github.com/krishisakhi/farm-alerts/internal/config"
	"github.com/krishisakhi/farm-alerts/internal/scheduler"

	_ "github.com/krishisakhi/farm-alerts/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// In-process schedule (0 = only on request)
	if cfg.AlertInterval > 0 {
		go scheduler.Start(ctx, a.Runner, cfg.AlertInterval, logger)
	} else {
		logger.Info("Alert ticker disabled (ALERT_INTERVAL not set)")
	}

	h := handler.New(a.Runner, a.Notifier, a.Store, a.Weather, logger)
	router := api.NewRouter(h, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// A full batch runs inside the /run-alerts request.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting farm alerts API",
			"addr", addr,
			"environment", cfg.Environment,
			"store", a.Store.Name(),
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
