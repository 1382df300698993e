package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Start runs the batch every interval until ctx is cancelled. Blocks;
// intended to be called with `go`. interval <= 0 returns immediately.
//
// A run that is still going when the next tick fires delays that tick
// instead of overlapping it.
func Start(ctx context.Context, runner *Runner, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	logger.Info("Alert ticker started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runLoop(ctx, ticker.C, func() {
		if _, err := runner.Run(ctx); err != nil {
			logger.Error("Scheduled alert run failed", "error", err)
		}
	})
	logger.Info("Alert ticker stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}
