package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseYAMLOverridesDefaults(t *testing.T) {
	t.Parallel()
	raw := []byte(`
log:
  level: debug
db:
  path: /tmp/t.db
scheduler:
  timezone: UTC
  due_today:
    every: 90s
    daily_at: "08:30"
  cleanup:
    retention: 48h
`)
	cfg, err := Parse("config.yaml", raw)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.DB.Path != "/tmp/t.db" {
		t.Fatalf("DB.Path = %q", cfg.DB.Path)
	}
	// Untouched sections keep defaults.
	if cfg.Scheduler.Overdue.Every != "5m" {
		t.Fatalf("Overdue.Every = %q, want default 5m", cfg.Scheduler.Overdue.Every)
	}
	if cfg.HTTP.Addr != ":8085" {
		t.Fatalf("HTTP.Addr = %q, want default :8085", cfg.HTTP.Addr)
	}

	set, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if set.DueTodayEvery != 90*time.Second {
		t.Fatalf("DueTodayEvery = %v", set.DueTodayEvery)
	}
	if set.CleanupRetention != 48*time.Hour {
		t.Fatalf("CleanupRetention = %v", set.CleanupRetention)
	}
	if set.Location.String() != "UTC" {
		t.Fatalf("Location = %v", set.Location)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	_, err := Parse("config.yaml", []byte("db:\n  path: x\n  driver: postgres\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantSub string
	}{
		{
			name:    "missing db path",
			mutate:  func(c *Config) { c.DB.Path = " " },
			wantSub: "db.path",
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" },
			wantSub: "timezone",
		},
		{
			name:    "bad interval",
			mutate:  func(c *Config) { c.Scheduler.Overdue.Every = "5 minutes" },
			wantSub: "scheduler.overdue.every",
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.Scheduler.Cleanup.Retention = "-24h" },
			wantSub: "retention",
		},
		{
			name:    "zero retention",
			mutate:  func(c *Config) { c.Scheduler.Cleanup.Retention = "0s" },
			wantSub: "retention",
		},
		{
			name:    "bad daily time",
			mutate:  func(c *Config) { c.Scheduler.Cleanup.DailyAt = "24:00" },
			wantSub: "cleanup.daily_at",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			_, err := cfg.Resolve()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestResolveDefaultsRetention(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Scheduler.Cleanup.Retention = ""
	set, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if set.CleanupRetention != 720*time.Hour {
		t.Fatalf("CleanupRetention = %v, want 720h", set.CleanupRetention)
	}
}

func TestValidateHHMM(t *testing.T) {
	t.Parallel()
	for _, ok := range []string{"", "00:00", "9:05", "23:59"} {
		if err := ValidateHHMM("f", ok); err != nil {
			t.Fatalf("ValidateHHMM(%q) = %v, want nil", ok, err)
		}
	}
	for _, bad := range []string{"24:00", "12:60", "noon", "12", "12:5"} {
		if err := ValidateHHMM("f", bad); err == nil {
			t.Fatalf("ValidateHHMM(%q) = nil, want error", bad)
		}
	}
}
