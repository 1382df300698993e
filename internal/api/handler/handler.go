// Package handler provides HTTP handlers for all API endpoints.
// Handlers trigger the alert batch or a test notification and report the
// outcome; all alert logic lives in the scheduler and notifications packages.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/krishisakhi/farm-alerts/internal/api/respond"
	"github.com/krishisakhi/farm-alerts/internal/notifications"
	"github.com/krishisakhi/farm-alerts/internal/scheduler"
)

// BatchRunner runs one alert batch.
type BatchRunner interface {
	Run(ctx context.Context) (scheduler.BatchResult, error)
}

// TestSender sends the fixed test notification to one user.
type TestSender interface {
	SendTest(ctx context.Context, uid string) (notifications.Delivery, error)
}

// StorePinger reports user store reachability.
type StorePinger interface {
	Ping(ctx context.Context) error
	Name() string
}

// StatsSource exposes cache statistics for health output.
type StatsSource interface {
	Stats() map[string]interface{}
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	runner  BatchRunner
	tester  TestSender
	store   StorePinger
	weather StatsSource // optional
	logger  *slog.Logger
}

// New creates a Handler with shared dependencies. weather may be nil.
func New(runner BatchRunner, tester TestSender, store StorePinger, weather StatsSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runner:  runner,
		tester:  tester,
		store:   store,
		weather: weather,
		logger:  logger,
	}
}

// RunAlertsResponse is the body returned after a completed batch.
type RunAlertsResponse struct {
	Status    string `json:"status"`
	RunID     string `json:"run_id"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Alerts    int    `json:"alerts"`
}

// StatusResponse is a bare status acknowledgement.
type StatusResponse struct {
	Status string `json:"status"`
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns service name, version, status and the endpoints it serves.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "KrishiSakhi Farm Alerts",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
		"endpoints": []string{
			"/run-alerts",
			"/test/{uid}",
			"/health",
			"/health/store",
		},
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.weather != nil {
		resp["weather_cache"] = h.weather.Stats()
	}
	respond.WriteJSONObject(w, http.StatusOK, resp)
}

// HealthCheckStore verifies user store connectivity.
// @Summary User store health check
// @Description Verifies the configured user store (Firebase or Postgres) is reachable.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/store [get]
func (h *Handler) HealthCheckStore(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("Store health check failed", "store", h.store.Name(), "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"store":     h.store.Name(),
			"error":     "User store connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"store":     h.store.Name(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// RunAlerts runs one alert batch synchronously.
// @Summary Run alert batch
// @Description Evaluates weather and activity rules for every user, saving and pushing each fired alert. Per-user failures are counted, not fatal.
// @Tags alerts
// @Produce json
// @Success 200 {object} RunAlertsResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /run-alerts [get]
func (h *Handler) RunAlerts(w http.ResponseWriter, r *http.Request) {
	res, err := h.runner.Run(r.Context())
	if err != nil {
		h.logger.Error("Alert run failed", "run_id", res.RunID, "error", err)
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "RUN_FAILED",
			"Alert run could not read the user store", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, RunAlertsResponse{
		Status:    "completed",
		RunID:     res.RunID,
		Processed: res.Processed,
		Failed:    res.Failed,
		Alerts:    res.AlertsFired,
	})
}

// SendTest sends the fixed test notification to one user.
// @Summary Send test notification
// @Description Saves the English test notification for the user and pushes it when a device token is registered.
// @Tags alerts
// @Produce json
// @Param uid path string true "User id"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /test/{uid} [get]
func (h *Handler) SendTest(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimSpace(chi.URLParam(r, "uid"))
	if uid == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_UID", "uid path parameter is required")
		return
	}

	d, err := h.tester.SendTest(r.Context(), uid)
	switch {
	case errors.Is(err, notifications.ErrUserNotFound):
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "No user "+uid)
		return
	case err != nil:
		h.logger.Error("Test notification failed", "user_id", uid, "error", err)
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "TEST_FAILED",
			"Test notification could not be saved", err.Error())
		return
	}
	h.logger.Info("Test notification sent", "user_id", uid, "notification_id", d.NotificationID, "pushed", d.Pushed)
	respond.WriteJSONObject(w, http.StatusOK, StatusResponse{Status: "ok"})
}
