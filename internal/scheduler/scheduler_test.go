package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/krishisakhi/farm-alerts/internal/farm"
	"github.com/krishisakhi/farm-alerts/internal/notifications"
	"github.com/krishisakhi/farm-alerts/internal/rules"
	"github.com/krishisakhi/farm-alerts/internal/weather"
)

// fakeUsers serves a fixed user list.
type fakeUsers struct {
	users []farm.User
	err   error
}

func (f fakeUsers) ListUsers(context.Context) ([]farm.User, error) {
	return f.users, f.err
}

// fakeWeather serves snapshots by city; unknown cities fail.
type fakeWeather struct {
	mu     sync.Mutex
	byCity map[string]farm.WeatherSnapshot
	calls  []string
}

func (f *fakeWeather) Fetch(_ context.Context, city string) (farm.WeatherSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, city)
	snap, ok := f.byCity[city]
	if !ok {
		return farm.WeatherSnapshot{}, errors.New("city not found")
	}
	return snap, nil
}

type notifyCall struct {
	uid   string
	alert rules.Alert
	lang  string
}

// fakeNotifier records every Notify call.
type fakeNotifier struct {
	mu      sync.Mutex
	calls   []notifyCall
	failFor map[string]bool
	pushed  bool
}

func (f *fakeNotifier) Notify(_ context.Context, uid string, a rules.Alert, lang string) (notifications.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{uid, a, lang})
	if f.failFor[uid] {
		return notifications.Delivery{}, errors.New("store unavailable")
	}
	return notifications.Delivery{NotificationID: "id", Pushed: f.pushed}, nil
}

func (f *fakeNotifier) callsFor(uid string) []notifyCall {
	var out []notifyCall
	for _, c := range f.calls {
		if c.uid == uid {
			out = append(out, c)
		}
	}
	return out
}

var neutral = farm.WeatherSnapshot{Temperature: 33, Humidity: 50}

func at(s string) func() time.Time {
	return func() time.Time {
		t, err := time.Parse(farm.DateLayout, s)
		if err != nil {
			panic(err)
		}
		return t.Add(10 * time.Hour)
	}
}

func newRunner(users []farm.User, w *fakeWeather, n *fakeNotifier, now func() time.Time) *Runner {
	return NewRunner(fakeUsers{users: users}, w, n, Config{Workers: 3, Now: now},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunKannadaHeatScenario(t *testing.T) {
	w := &fakeWeather{byCity: map[string]farm.WeatherSnapshot{
		"Sirsi": {Temperature: 36, Humidity: 50},
	}}
	n := &fakeNotifier{}
	users := []farm.User{{ID: "u1", PreferredLanguage: "kn", Location: "Sirsi"}}

	res, err := newRunner(users, w, n, at("2024-01-06")).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(n.calls) != 1 {
		t.Fatalf("notify calls = %d, want 1", len(n.calls))
	}
	c := n.calls[0]
	if c.alert.Type != farm.TypeWeather || c.lang != "kn" || c.alert.Title != "ನೀರಾವರಿ ಎಚ್ಚರಿಕೆ" {
		t.Fatalf("call = %+v", c)
	}
	if res.Processed != 1 || res.Failed != 0 || res.AlertsFired != 1 || res.NotificationsSaved != 1 {
		t.Fatalf("result = %s", res.Summary())
	}
	if res.RunID == "" {
		t.Error("run id missing")
	}
}

func TestRunIrrigationDueDate(t *testing.T) {
	users := []farm.User{{
		ID: "u1",
		ActivityLogs: farm.ActivityLogs{"paddy": {"l1": {
			"subActivity":        "water_management",
			"lastIrrigationDate": "2024-01-01",
			"frequencyDays":      float64(5),
		}}},
	}}
	w := &fakeWeather{byCity: map[string]farm.WeatherSnapshot{"Sirsi": neutral}}

	for _, tt := range []struct {
		date string
		want int
	}{
		{"2024-01-05", 0},
		{"2024-01-06", 1},
	} {
		n := &fakeNotifier{}
		if _, err := newRunner(users, w, n, at(tt.date)).Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(n.calls) != tt.want {
			t.Fatalf("%s: notify calls = %d, want %d", tt.date, len(n.calls), tt.want)
		}
		if tt.want == 1 && n.calls[0].alert.Type != farm.TypeIrrigation {
			t.Fatalf("type = %q", n.calls[0].alert.Type)
		}
	}
}

func TestRunZeroAlertsZeroCalls(t *testing.T) {
	w := &fakeWeather{byCity: map[string]farm.WeatherSnapshot{"Sirsi": neutral}}
	n := &fakeNotifier{}
	users := []farm.User{{ID: "u1"}, {ID: "u2", ActivityLogs: farm.ActivityLogs{}}}

	res, err := newRunner(users, w, n, at("2024-01-06")).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(n.calls) != 0 || res.AlertsFired != 0 || res.Processed != 2 {
		t.Fatalf("calls=%d result=%s", len(n.calls), res.Summary())
	}
}

func TestRunDefaultsCityAndLanguage(t *testing.T) {
	w := &fakeWeather{byCity: map[string]farm.WeatherSnapshot{"Sirsi": {Temperature: 40, Humidity: 50}}}
	n := &fakeNotifier{}

	if _, err := newRunner([]farm.User{{ID: "u1"}}, w, n, at("2024-01-06")).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(w.calls) != 1 || w.calls[0] != "Sirsi" {
		t.Fatalf("weather calls = %v", w.calls)
	}
	if len(n.calls) != 1 || n.calls[0].lang != "en" || n.calls[0].alert.Title != "Irrigation Alert" {
		t.Fatalf("calls = %+v", n.calls)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	dueWater := farm.ActivityLogs{"paddy": {"l1": {
		"subActivity": "water_management", "lastIrrigationDate": "2024-01-01", "frequencyDays": float64(1),
	}}}
	users := []farm.User{
		// Weather fails; activity rules still run.
		{ID: "a", Location: "Atlantis", ActivityLogs: dueWater},
		// One malformed entry, one good one.
		{ID: "b", ActivityLogs: farm.ActivityLogs{"areca": {
			"bad":  {"subActivity": "nutrient_management"},
			"good": {"subActivity": "pest_management", "lastSprayDate": "2024-01-01", "sprayInterval": float64(2)},
			"skip": {"subActivity": "other"},
		}}},
		// Notifier fails for this user.
		{ID: "c", ActivityLogs: dueWater},
		// Healthy.
		{ID: "d", ActivityLogs: dueWater},
	}
	w := &fakeWeather{byCity: map[string]farm.WeatherSnapshot{"Sirsi": neutral}}
	n := &fakeNotifier{failFor: map[string]bool{"c": true}, pushed: true}

	res, err := newRunner(users, w, n, at("2024-01-10")).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := n.callsFor("a"); len(got) != 1 || got[0].alert.Rule != rules.RuleIrrigation {
		t.Errorf("user a calls = %+v", got)
	}
	if got := n.callsFor("b"); len(got) != 1 || got[0].alert.Rule != rules.RulePesticide {
		t.Errorf("user b calls = %+v", got)
	}
	if got := n.callsFor("d"); len(got) != 1 {
		t.Errorf("user d calls = %+v", got)
	}

	if res.Processed != 4 || res.Failed != 3 {
		t.Fatalf("result = %s", res.Summary())
	}
	if res.AlertsFired != 4 || res.NotificationsSaved != 3 || res.PushesSent != 3 {
		t.Fatalf("result = %s", res.Summary())
	}

	sort.Strings(res.Errors)
	joined := strings.Join(res.Errors, "\n")
	for _, want := range []string{"user a: weather Atlantis", "user b: ", "user c: notify irrigation"} {
		if !strings.Contains(joined, want) {
			t.Errorf("errors missing %q:\n%s", want, joined)
		}
	}
}

func TestRunListUsersFailure(t *testing.T) {
	r := NewRunner(fakeUsers{err: errors.New("connection refused")}, &fakeWeather{}, &fakeNotifier{}, Config{}, nil)
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error when the user store is unreachable")
	}
}

func TestRunManyUsersEachNotifiedOnce(t *testing.T) {
	var users []farm.User
	for i := 0; i < 50; i++ {
		users = append(users, farm.User{ID: string(rune('A' + i%26)) + string(rune('a'+i/26)), Location: "Hot"})
	}
	w := &fakeWeather{byCity: map[string]farm.WeatherSnapshot{"Hot": {Temperature: 39, Humidity: 40}}}
	n := &fakeNotifier{}

	res, err := newRunner(users, w, n, at("2024-01-06")).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(n.calls) != 50 || res.Processed != 50 {
		t.Fatalf("calls=%d result=%s", len(n.calls), res.Summary())
	}
	seen := map[string]int{}
	for _, c := range n.calls {
		seen[c.uid]++
	}
	for uid, count := range seen {
		if count != 1 {
			t.Errorf("user %s notified %d times", uid, count)
		}
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &fakeWeather{byCity: map[string]farm.WeatherSnapshot{"Sirsi": neutral}}
	res, err := newRunner([]farm.User{{ID: "u1"}, {ID: "u2"}}, w, &fakeNotifier{}, at("2024-01-06")).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Processed != 2 || res.Failed != 2 {
		t.Fatalf("result = %s", res.Summary())
	}
}

func TestRunReadsFreshWeatherEachRun(t *testing.T) {
	provider := &fakeWeather{byCity: map[string]farm.WeatherSnapshot{"Sirsi": {Temperature: 36, Humidity: 50}}}
	cached := weather.NewCachedFetcher(provider, time.Hour)
	n := &fakeNotifier{}
	users := []farm.User{{ID: "u1"}, {ID: "u2"}}
	r := NewRunner(fakeUsers{users: users}, cached, n, Config{Workers: 1, Now: at("2024-01-06")},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	first, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.AlertsFired != 2 || len(provider.calls) != 1 {
		t.Fatalf("first run: alerts=%d provider calls=%d", first.AlertsFired, len(provider.calls))
	}

	// The heat passes before the next run.
	provider.mu.Lock()
	provider.byCity["Sirsi"] = neutral
	provider.mu.Unlock()

	second, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.AlertsFired != 0 {
		t.Fatalf("second run reused old weather: alerts=%d", second.AlertsFired)
	}
	if len(provider.calls) != 2 {
		t.Fatalf("provider calls = %d, want 2", len(provider.calls))
	}
}

func TestRunUnreadableLogsStillGetsWeatherAlerts(t *testing.T) {
	w := &fakeWeather{byCity: map[string]farm.WeatherSnapshot{"Sirsi": {Temperature: 37, Humidity: 50}}}
	n := &fakeNotifier{}
	users := []farm.User{
		{ID: "broken", ActivityLogs: farm.ActivityLogs{}, LogsErr: fmt.Errorf("%w: not an object", farm.ErrUnreadableLogs)},
		{ID: "fine"},
	}

	res, err := newRunner(users, w, n, at("2024-01-06")).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := n.callsFor("broken"); len(got) != 1 || got[0].alert.Rule != rules.RuleHeat {
		t.Fatalf("broken user calls = %+v", got)
	}
	if res.Processed != 2 || res.Failed != 1 {
		t.Fatalf("result = %s", res.Summary())
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "user broken: unreadable activity logs") {
		t.Fatalf("errors = %v", res.Errors)
	}
}

func TestBatchResultCapsErrors(t *testing.T) {
	var r BatchResult
	for i := 0; i < maxErrors+5; i++ {
		r.add(UserResult{UserID: "u", Errors: []string{"x"}})
	}
	if len(r.Errors) != maxErrors || r.DroppedErrors != 5 || r.Failed != maxErrors+5 {
		t.Fatalf("errors=%d dropped=%d failed=%d", len(r.Errors), r.DroppedErrors, r.Failed)
	}
}
