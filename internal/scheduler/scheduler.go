package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/krishisakhi/farm-alerts/internal/farm"
	"github.com/krishisakhi/farm-alerts/internal/notifications"
	"github.com/krishisakhi/farm-alerts/internal/rules"
	"github.com/krishisakhi/farm-alerts/internal/weather"
)

// UserLister reads the user collection.
type UserLister interface {
	ListUsers(ctx context.Context) ([]farm.User, error)
}

// AlertNotifier saves and pushes one alert.
type AlertNotifier interface {
	Notify(ctx context.Context, uid string, alert rules.Alert, lang string) (notifications.Delivery, error)
}

// resetter is implemented by fetchers that cache readings during a run.
type resetter interface {
	Reset() int
}

// Runner executes alert batches. One Runner may serve overlapping HTTP and
// ticker triggers; each Run is independent.
type Runner struct {
	users    UserLister
	weather  weather.Fetcher
	notifier AlertNotifier
	workers  int
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// Config holds optional Runner settings. Zero values get defaults.
type Config struct {
	Workers  int
	Location *time.Location
	Now      func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(users UserLister, fetcher weather.Fetcher, notifier AlertNotifier, cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{
		users:    users,
		weather:  fetcher,
		notifier: notifier,
		workers:  cfg.Workers,
		loc:      cfg.Location,
		now:      cfg.Now,
		logger:   logger,
	}
}

// Run processes every user once. The only returned error is a failure to
// read the user collection; everything after that is reported per user in
// the BatchResult.
func (r *Runner) Run(ctx context.Context) (BatchResult, error) {
	start := time.Now()
	result := BatchResult{RunID: uuid.NewString()}
	logger := r.logger.With("run_id", result.RunID)

	// Weather is read fresh for every run.
	if c, ok := r.weather.(resetter); ok {
		c.Reset()
	}

	users, err := r.users.ListUsers(ctx)
	if err != nil {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("list users: %w", err)
	}

	result.UsersFound = len(users)
	if len(users) == 0 {
		logger.Info("No users to process")
		result.Duration = time.Since(start)
		return result, nil
	}

	today := r.now().In(r.loc)
	logger.Info("Alert run started", "users", len(users), "workers", r.workers, "date", today.Format(farm.DateLayout))

	// Worker pool: one channel of users, N workers
	workers := r.workers
	if workers > len(users) {
		workers = len(users)
	}

	ch := make(chan farm.User, len(users))
	for _, u := range users {
		ch <- u
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range ch {
				if ctx.Err() != nil {
					mu.Lock()
					result.add(UserResult{UserID: u.ID, Errors: []string{"cancelled: " + ctx.Err().Error()}})
					mu.Unlock()
					continue
				}

				ur := r.ProcessUser(ctx, u, today)
				if ur.Failed() {
					logger.Warn("User processed with errors", "summary", ur.Summary())
				} else {
					logger.Debug("User processed", "summary", ur.Summary())
				}

				mu.Lock()
				result.add(ur)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	result.Duration = time.Since(start)

	logger.Info("Alert run complete", "summary", result.Summary())
	return result, nil
}

// ProcessUser runs both rule families for one user. Panics from a single
// user are recovered and recorded so the batch continues.
func (r *Runner) ProcessUser(ctx context.Context, u farm.User, today time.Time) (res UserResult) {
	lang := u.Language()
	city := u.City()
	res = UserResult{UserID: u.ID, City: city, Lang: lang}

	defer func() {
		if p := recover(); p != nil {
			res.addErrorf("panic: %v", p)
		}
	}()

	// Weather rules. A failed fetch skips them and moves on to activities.
	snap, err := r.weather.Fetch(ctx, city)
	if err != nil {
		res.WeatherSkipped = true
		res.addErrorf("weather %s: %v", city, err)
	} else {
		r.deliver(ctx, u.ID, lang, rules.WeatherAlerts(snap, lang), &res)
	}

	// Activity rules.
	if u.LogsErr != nil {
		r.logger.Warn("activity logs unreadable", "user_id", u.ID, "error", u.LogsErr)
		res.addErrorf("%v", u.LogsErr)
	}
	activities, parseErrs := farm.ParseLogs(u.ActivityLogs)
	for _, e := range parseErrs {
		r.logger.Warn("skipping activity entry", "user_id", u.ID, "error", e)
		res.addErrorf("%v", e)
	}
	r.deliver(ctx, u.ID, lang, rules.ActivityAlerts(activities, today, lang), &res)

	return res
}

func (r *Runner) deliver(ctx context.Context, uid, lang string, alerts []rules.Alert, res *UserResult) {
	for _, a := range alerts {
		res.AlertsFired++
		d, err := r.notifier.Notify(ctx, uid, a, lang)
		if err != nil {
			res.addErrorf("notify %s: %v", a.Rule, err)
			continue
		}
		switch {
		case d.Suppressed:
			res.Suppressed++
		default:
			res.NotificationsSaved++
			if d.Pushed {
				res.PushesSent++
			}
		}
	}
}
