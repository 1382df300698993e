package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/krishisakhi/farm-alerts/internal/api/respond"
	"github.com/krishisakhi/farm-alerts/internal/farm"
	"github.com/krishisakhi/farm-alerts/internal/notifications"
	"github.com/krishisakhi/farm-alerts/internal/scheduler"
)

type fakeRunner struct {
	res scheduler.BatchResult
	err error
}

func (f fakeRunner) Run(context.Context) (scheduler.BatchResult, error) { return f.res, f.err }

type fakeTester struct {
	got string
	err error
}

func (f *fakeTester) SendTest(_ context.Context, uid string) (notifications.Delivery, error) {
	f.got = uid
	if f.err != nil {
		return notifications.Delivery{}, f.err
	}
	return notifications.Delivery{NotificationID: "n1"}, nil
}

type fakeStore struct{ err error }

func (f fakeStore) Ping(context.Context) error { return f.err }
func (fakeStore) Name() string                 { return "fake" }

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.HealthCheck)
	r.Get("/health/store", h.HealthCheckStore)
	r.Get("/run-alerts", h.RunAlerts)
	r.Get("/test/{uid}", h.SendTest)
	return r
}

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunAlerts(t *testing.T) {
	res := scheduler.BatchResult{RunID: "r1", Processed: 7, Failed: 2, AlertsFired: 11}
	h := New(fakeRunner{res: res}, &fakeTester{}, fakeStore{}, nil, quiet())

	rec := do(t, newTestRouter(h), "/run-alerts")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body RunAlertsResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	want := RunAlertsResponse{Status: "completed", RunID: "r1", Processed: 7, Failed: 2, Alerts: 11}
	if body != want {
		t.Fatalf("body = %+v, want %+v", body, want)
	}
}

func TestRunAlertsStoreDown(t *testing.T) {
	h := New(fakeRunner{err: fmt.Errorf("list users: %w", errors.New("dial tcp: refused"))}, &fakeTester{}, fakeStore{}, nil, quiet())

	rec := do(t, newTestRouter(h), "/run-alerts")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body respond.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != "RUN_FAILED" {
		t.Fatalf("code = %q", body.Error.Code)
	}
}

func TestSendTest(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"ok", nil, http.StatusOK, ""},
		{"unknown user", fmt.Errorf("u9: %w", notifications.ErrUserNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"store failure", errors.New("permission denied"), http.StatusInternalServerError, "TEST_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tester := &fakeTester{err: tt.err}
			h := New(fakeRunner{}, tester, fakeStore{}, nil, quiet())

			rec := do(t, newTestRouter(h), "/test/u9")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tester.got != "u9" {
				t.Fatalf("uid = %q", tester.got)
			}
			if tt.code == "" {
				var body StatusResponse
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Status != "ok" {
					t.Fatalf("body = %+v err = %v", body, err)
				}
				return
			}
			var body respond.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Error.Code != tt.code {
				t.Fatalf("code = %q, want %q", body.Error.Code, tt.code)
			}
		})
	}
}

func TestSendTestBlankUID(t *testing.T) {
	tester := &fakeTester{}
	h := New(fakeRunner{}, tester, fakeStore{}, nil, quiet())

	rec := do(t, newTestRouter(h), "/test/%20")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if tester.got != "" {
		t.Fatal("sender should not be called")
	}
}

func TestHealthCheckStore(t *testing.T) {
	for _, tt := range []struct {
		err    error
		status int
	}{
		{nil, http.StatusOK},
		{errors.New("timeout"), http.StatusServiceUnavailable},
	} {
		h := New(fakeRunner{}, &fakeTester{}, fakeStore{err: tt.err}, nil, quiet())
		rec := do(t, newTestRouter(h), "/health/store")
		if rec.Code != tt.status {
			t.Fatalf("err=%v: status = %d, want %d", tt.err, rec.Code, tt.status)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["store"] != "fake" {
			t.Fatalf("body = %v", body)
		}
	}
}

type fakeStats struct{}

func (fakeStats) Stats() map[string]interface{} { return map[string]interface{}{"active_keys": 3} }

func TestHealthCheckIncludesWeatherCache(t *testing.T) {
	h := New(fakeRunner{}, &fakeTester{}, fakeStore{}, fakeStats{}, quiet())
	rec := do(t, newTestRouter(h), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status       string         `json:"status"`
		WeatherCache map[string]int `json:"weather_cache"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "healthy" || body.WeatherCache["active_keys"] != 3 {
		t.Fatalf("body = %+v", body)
	}
}

// unknownUserStore rejects every write the way the stores do for a user id
// that does not exist.
type unknownUserStore struct{}

func (unknownUserStore) AppendNotification(_ context.Context, uid string, _ farm.Notification) (string, error) {
	return "", fmt.Errorf("%s: %w", uid, notifications.ErrUserNotFound)
}

func (unknownUserStore) PushToken(context.Context, string) (string, error) { return "", nil }

func TestSendTestUnknownUserThroughNotifier(t *testing.T) {
	notifier := notifications.NewNotifier(unknownUserStore{}, nil, quiet())
	h := New(fakeRunner{}, notifier, fakeStore{}, nil, quiet())

	rec := do(t, newTestRouter(h), "/test/ghost")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body respond.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("code = %q", body.Error.Code)
	}
}
