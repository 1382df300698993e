// Package scheduler runs the alert batch: read every user once, then for
// each user fetch weather, evaluate both rule families and notify, with a
// bounded worker pool and per-user failure isolation.
package scheduler

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultWorkers = 4
	maxErrors      = 200 // errors kept on a BatchResult; the rest are counted
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// UserResult tracks the outcome of one user's pass.
type UserResult struct {
	UserID             string
	City               string
	Lang               string
	WeatherSkipped     bool
	AlertsFired        int
	NotificationsSaved int
	PushesSent         int
	Suppressed         int
	Errors             []string
}

// Failed reports whether any step for this user recorded an error.
func (r *UserResult) Failed() bool {
	return len(r.Errors) > 0
}

func (r *UserResult) addErrorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary.
func (r *UserResult) Summary() string {
	status := "ok"
	if r.Failed() {
		status = "FAILED"
	}
	return fmt.Sprintf("user=%s city=%s lang=%s alerts=%d saved=%d pushed=%d suppressed=%d errors=%d status=%s",
		r.UserID, r.City, r.Lang, r.AlertsFired, r.NotificationsSaved,
		r.PushesSent, r.Suppressed, len(r.Errors), status)
}

// BatchResult tracks the outcome of a full alert run.
type BatchResult struct {
	RunID              string
	UsersFound         int
	Processed          int
	Failed             int
	AlertsFired        int
	NotificationsSaved int
	PushesSent         int
	Suppressed         int
	Duration           time.Duration
	Errors             []string
	DroppedErrors      int
}

func (r *BatchResult) add(u UserResult) {
	r.Processed++
	r.AlertsFired += u.AlertsFired
	r.NotificationsSaved += u.NotificationsSaved
	r.PushesSent += u.PushesSent
	r.Suppressed += u.Suppressed
	if u.Failed() {
		r.Failed++
	}
	for _, e := range u.Errors {
		if len(r.Errors) >= maxErrors {
			r.DroppedErrors++
			continue
		}
		r.Errors = append(r.Errors, fmt.Sprintf("user %s: %s", u.UserID, e))
	}
}

// Summary returns a human-readable summary.
func (r *BatchResult) Summary() string {
	return fmt.Sprintf(
		"run=%s found=%d processed=%d failed=%d alerts=%d saved=%d pushed=%d suppressed=%d dur=%s",
		r.RunID, r.UsersFound, r.Processed, r.Failed, r.AlertsFired,
		r.NotificationsSaved, r.PushesSent, r.Suppressed,
		r.Duration.Round(time.Millisecond))
}
