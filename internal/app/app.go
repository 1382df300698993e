// Package app wires the alert job's components from a Config. Both
// commands share it so the HTTP server and the CLI run identical batches.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/krishisakhi/farm-alerts/internal/config"
	"github.com/krishisakhi/farm-alerts/internal/db"
	"github.com/krishisakhi/farm-alerts/internal/firebase"
	"github.com/krishisakhi/farm-alerts/internal/notifications"
	"github.com/krishisakhi/farm-alerts/internal/scheduler"
	"github.com/krishisakhi/farm-alerts/internal/store"
	"github.com/krishisakhi/farm-alerts/internal/weather"
)

// App holds the wired components. Close releases pools and connections.
type App struct {
	Store    store.Store
	Weather  *weather.CachedFetcher
	Notifier *notifications.Notifier
	Runner   *scheduler.Runner

	closers []func()
}

// New connects to the configured user store, Firebase messaging and
// (optionally) Redis, and builds the runner.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}

	var fb *firebase.App
	if cfg.StoreBackend == config.BackendFirebase || cfg.FirebaseCredentialsFile != "" {
		var err error
		fb, err = firebase.New(ctx, cfg.FirebaseCredentialsFile, cfg.FirebaseDatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to firebase: %w", err)
		}
	}

	switch cfg.StoreBackend {
	case config.BackendFirebase:
		if fb.Database == nil {
			return nil, fmt.Errorf("firebase store needs FIREBASE_DATABASE_URL")
		}
		a.Store = store.NewFirebase(fb.Database, logger)
	case config.BackendPostgres:
		pool, err := db.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		logger.Info("Database connected",
			"min_conns", cfg.DBPoolMinConns,
			"max_conns", cfg.DBPoolMaxConns)
		a.Store = store.NewPostgres(pool, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	logger.Info("User store ready", "backend", a.Store.Name())

	var sender *notifications.FCMSender
	if fb != nil {
		sender = notifications.NewFCMSender(fb.Messaging, logger)
	}
	if sender == nil {
		logger.Info("Push delivery disabled (no Firebase messaging client)")
	}

	opts := []notifications.Option{notifications.WithLocation(cfg.Location())}
	if cfg.DedupEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { rdb.Close() })
		guard := notifications.NewRedisGuard(rdb, cfg.DedupTTL, logger)
		if err := guard.Ping(ctx); err != nil {
			// Claims fail open, so an unreachable Redis only disables dedup.
			logger.Warn("Redis unreachable, alerts will not be deduplicated", "addr", cfg.RedisAddr, "error", err)
		} else {
			logger.Info("Alert dedup enabled", "addr", cfg.RedisAddr, "ttl", cfg.DedupTTL)
		}
		opts = append(opts, notifications.WithGuard(guard))
	}
	a.Notifier = notifications.NewNotifier(a.Store, sender, logger, opts...)

	client := weather.NewClient(cfg.WeatherAPIURL, cfg.WeatherAPIKey,
		cfg.WeatherHTTPTimeout, cfg.WeatherRequestsPerMinute, logger)
	a.Weather = weather.NewCachedFetcher(client, cfg.WeatherCacheTTL)

	a.Runner = scheduler.NewRunner(a.Store, a.Weather, a.Notifier, scheduler.Config{
		Workers:  cfg.AlertWorkers,
		Location: cfg.Location(),
	}, logger)

	return a, nil
}

// Close releases every connection opened by New, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
