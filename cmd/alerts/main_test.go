package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestDryRunDayUsesAlertTimezone(t *testing.T) {
	// 20:00 UTC on Jan 5 is already Jan 6 in Asia/Kolkata.
	now := time.Date(2024, 1, 5, 20, 0, 0, 0, time.UTC)

	day, err := dryRunDay("", "Asia/Kolkata", now)
	if err != nil {
		t.Fatalf("dryRunDay: %v", err)
	}
	if got := day.Format("2006-01-02"); got != "2024-01-06" {
		t.Fatalf("day = %s, want 2024-01-06", got)
	}

	day, err = dryRunDay("2024-03-01", "Asia/Kolkata", now)
	if err != nil || day.Format("2006-01-02") != "2024-03-01" {
		t.Fatalf("explicit --today = %v, %v", day, err)
	}

	if _, err := dryRunDay("", "Not/AZone", now); err == nil {
		t.Fatal("expected error for unknown zone")
	}
	if _, err := dryRunDay("06-01-2024", "UTC", now); err == nil {
		t.Fatal("expected error for bad --today")
	}
}

func TestDefaultTimezone(t *testing.T) {
	t.Setenv("ALERT_TIMEZONE", "")
	if got := defaultTimezone(); got != "Asia/Kolkata" {
		t.Fatalf("default = %q", got)
	}
	t.Setenv("ALERT_TIMEZONE", "UTC")
	if got := defaultTimezone(); got != "UTC" {
		t.Fatalf("env = %q", got)
	}
}

func TestTestCommandRequiresUID(t *testing.T) {
	flag := testCmd().Flags().Lookup("uid")
	if flag == nil {
		t.Fatal("uid flag missing")
	}
	if got := flag.Annotations[cobra.BashCompOneRequiredFlag]; len(got) != 1 || got[0] != "true" {
		t.Fatalf("uid required annotation = %v", got)
	}
}

func TestRulesCommandDryRun(t *testing.T) {
	cmd := rulesCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--temp", "36", "--lang", "kn",
		"--activity", "water_management", "--date", "2024-01-01", "--interval", "5", "--today", "2024-01-06",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := out.String()
	for _, want := range []string{"due date: 2024-01-06", "[heat] ನೀರಾವರಿ ಎಚ್ಚರಿಕೆ (weather)", "[irrigation]"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
