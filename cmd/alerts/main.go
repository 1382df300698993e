// Command alerts is the farm alerts CLI.
//
// Usage:
//
//	farm-alerts run --workers 8
//	farm-alerts test --uid abc123
//	farm-alerts users
//	farm-alerts rules --temp 36 --humidity 80 --lang kn
//	farm-alerts rules --activity water_management --date 2024-01-01 --interval 5 --today 2024-01-06
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/krishisakhi/farm-alerts/internal/app"
	"github.com/krishisakhi/farm-alerts/internal/config"
	"github.com/krishisakhi/farm-alerts/internal/farm"
	"github.com/krishisakhi/farm-alerts/internal/rules"
	"github.com/krishisakhi/farm-alerts/internal/scheduler"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "farm-alerts",
		Short:        "KrishiSakhi farm alerts CLI",
		SilenceUsage: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(testCmd())
	root.AddCommand(usersCmd())
	root.AddCommand(rulesCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one alert batch over every user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(ctx context.Context, cfg *config.Config, a *app.App) error {
				runner := a.Runner
				if workers > 0 {
					runner = scheduler.NewRunner(a.Store, a.Weather, a.Notifier, scheduler.Config{
						Workers:  workers,
						Location: cfg.Location(),
					}, logger)
				}
				result, err := runner.Run(ctx)
				if err != nil {
					return err
				}
				logger.Info("Alert batch finished", "summary", result.Summary())
				for _, e := range result.Errors {
					logger.Error("user error", "error", e)
				}
				if result.DroppedErrors > 0 {
					logger.Warn("Errors truncated", "dropped", result.DroppedErrors)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent users (default ALERT_WORKERS)")
	return cmd
}

// --------------------------------------------------------------------------
// test command
// --------------------------------------------------------------------------

func testCmd() *cobra.Command {
	var uid string
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send the test notification to one user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(ctx context.Context, cfg *config.Config, a *app.App) error {
				d, err := a.Notifier.SendTest(ctx, uid)
				if err != nil {
					return fmt.Errorf("send test to %s: %w", uid, err)
				}
				logger.Info("Test notification sent",
					"user_id", uid,
					"notification_id", d.NotificationID,
					"pushed", d.Pushed,
					"no_token", d.NoToken)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "User id")
	cobra.CheckErr(cmd.MarkFlagRequired("uid"))
	return cmd
}

// --------------------------------------------------------------------------
// users command
// --------------------------------------------------------------------------

func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users with their resolved language and city",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(ctx context.Context, cfg *config.Config, a *app.App) error {
				users, err := a.Store.ListUsers(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, u := range users {
					activities, errs := farm.ParseLogs(u.ActivityLogs)
					fmt.Fprintf(out, "%s\tlang=%s\tcity=%s\tactivities=%d\tmalformed=%d\n",
						u.ID, u.Language(), u.City(), len(activities), len(errs))
				}
				logger.Info("Users listed", "count", len(users), "store", a.Store.Name())
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// rules command (dry run, no store or network)
// --------------------------------------------------------------------------

func rulesCmd() *cobra.Command {
	var (
		temp, humidity float64
		rain           bool
		lang           string
		kind           string
		start          string
		interval       int
		today          string
		tz             string
	)
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Evaluate the alert rules against given inputs without sending",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := farm.WeatherSnapshot{Temperature: temp, Humidity: humidity, RainPresent: rain}
			alerts := rules.WeatherAlerts(snap, lang)

			if kind != "" {
				day, err := dryRunDay(today, tz, time.Now())
				if err != nil {
					return err
				}
				a, err := farm.ParseActivity(farm.EntryRef{CropID: "cli", LogID: "cli"}, dryRunEntry(kind, start, interval))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "due date: %s\n", farm.DueDate(a).Format(farm.DateLayout))
				if alert, ok := rules.ActivityAlert(a, day, lang); ok {
					alerts = append(alerts, alert)
				}
			}

			if len(alerts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no alerts")
				return nil
			}
			for _, a := range alerts {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s (%s): %s\n", a.Rule, a.Title, a.Type, a.Message)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&temp, "temp", 30, "Temperature in °C")
	cmd.Flags().Float64Var(&humidity, "humidity", 50, "Relative humidity %")
	cmd.Flags().BoolVar(&rain, "rain", false, "Rain reported")
	cmd.Flags().StringVar(&lang, "lang", farm.DefaultLanguage, "Language (en or kn)")
	cmd.Flags().StringVar(&kind, "activity", "", "Sub-activity tag: nutrient_management, water_management, pest_management")
	cmd.Flags().StringVar(&start, "date", "", "Last activity date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&interval, "interval", 0, "Interval in days")
	cmd.Flags().StringVar(&today, "today", "", "Evaluation date (YYYY-MM-DD, default today in --tz)")
	cmd.Flags().StringVar(&tz, "tz", defaultTimezone(), "Time zone for the default evaluation date (default ALERT_TIMEZONE)")
	return cmd
}

// defaultTimezone mirrors config.Load without requiring the rest of the
// configuration to be valid.
func defaultTimezone() string {
	if tz := os.Getenv("ALERT_TIMEZONE"); tz != "" {
		return tz
	}
	return config.DefaultTimezone
}

// dryRunDay resolves the evaluation date: --today when given, otherwise the
// current calendar date in tz, the same zone a batch run uses.
func dryRunDay(today, tz string, now time.Time) (time.Time, error) {
	if today != "" {
		t, err := time.Parse(farm.DateLayout, today)
		if err != nil {
			return time.Time{}, fmt.Errorf("--today: %w", err)
		}
		return t, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("--tz %q: %w", tz, err)
	}
	return now.In(loc), nil
}

// dryRunEntry builds the raw log entry shape for kind.
func dryRunEntry(kind, date string, interval int) farm.RawEntry {
	switch kind {
	case farm.TagNutrient:
		return farm.RawEntry{
			"subActivity": kind,
			"applications": []any{
				map[string]any{"applicationDate": date, "gapDays": interval},
			},
		}
	case farm.TagWater:
		return farm.RawEntry{"subActivity": kind, "lastIrrigationDate": date, "frequencyDays": interval}
	default:
		return farm.RawEntry{"subActivity": kind, "lastSprayDate": date, "sprayInterval": interval}
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func runApp(fn func(ctx context.Context, cfg *config.Config, a *app.App) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, cfg, a)
}
