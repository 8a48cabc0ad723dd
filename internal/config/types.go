package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskping/pkg/logx"
)

// Config is the on-disk configuration. All durations are Go duration strings
// (e.g. "500ms", "10s", "2m"); daily times are "HH:MM" in the scheduler
// timezone.
type Config struct {
	Log       logx.Config     `json:"log"`
	DB        DBConfig        `json:"db"`
	HTTP      HTTPConfig      `json:"http"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Push      PushConfig      `json:"push"`
}

type DBConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type HTTPConfig struct {
	Addr         string `json:"addr"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}

// JobTriggers configures when a detection job fires. Every and DailyAt may be
// combined; a job with both fires on the interval and additionally at the
// fixed time of day.
type JobTriggers struct {
	Every   string `json:"every,omitempty"`
	DailyAt string `json:"daily_at,omitempty"`
}

type CleanupConfig struct {
	DailyAt   string `json:"daily_at,omitempty"`
	Retention string `json:"retention,omitempty"`
}

type SchedulerConfig struct {
	Timezone      string        `json:"timezone,omitempty"` // IANA TZ, e.g. "Europe/Berlin"; empty = local
	JobTimeout    string        `json:"job_timeout,omitempty"`
	ShutdownGrace string        `json:"shutdown_grace,omitempty"`
	DueToday      JobTriggers   `json:"due_today"`
	DueTomorrow   JobTriggers   `json:"due_tomorrow"`
	Overdue       JobTriggers   `json:"overdue"`
	Cleanup       CleanupConfig `json:"cleanup"`
}

type PushConfig struct {
	SendTimeout string `json:"send_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}

// Default returns the configuration used when fields are omitted.
// The cadences mirror the job table in the service docs: due-today every 2m
// plus daily 09:00, due-tomorrow daily 17:00, overdue every 5m, cleanup at
// midnight with 30 days retention.
func Default() *Config {
	return &Config{
		Log: logx.Config{Level: "info", Console: true},
		DB:  DBConfig{Path: "./data/taskping.db", BusyTimeout: "5s"},
		HTTP: HTTPConfig{
			Addr:         ":8085",
			ReadTimeout:  "10s",
			WriteTimeout: "10s",
		},
		Scheduler: SchedulerConfig{
			JobTimeout:    "60s",
			ShutdownGrace: "10s",
			DueToday:      JobTriggers{Every: "2m", DailyAt: "09:00"},
			DueTomorrow:   JobTriggers{DailyAt: "17:00"},
			Overdue:       JobTriggers{Every: "5m"},
			Cleanup:       CleanupConfig{DailyAt: "00:00", Retention: "720h"},
		},
		Push: PushConfig{SendTimeout: "2s", RatePerSec: 50},
	}
}

// Settings holds the parsed/validated values derived from Config.
type Settings struct {
	Location *time.Location

	DBBusyTimeout time.Duration
	HTTPRead      time.Duration
	HTTPWrite     time.Duration

	JobTimeout    time.Duration
	ShutdownGrace time.Duration

	DueTodayEvery    time.Duration
	DueTomorrowEvery time.Duration
	OverdueEvery     time.Duration

	CleanupRetention time.Duration

	PushSendTimeout time.Duration
	PushRatePerSec  int
}

// Resolve validates the config and parses every duration/timezone field.
// Any error here is fatal: the daemon refuses to start on a bad config
// instead of discovering it at first run.
func (c *Config) Resolve() (*Settings, error) {
	if strings.TrimSpace(c.DB.Path) == "" {
		return nil, errors.New("db.path is required")
	}

	s := &Settings{PushRatePerSec: c.Push.RatePerSec}

	loc := time.Local
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("scheduler.timezone: unknown timezone %q", tz)
		}
		loc = l
	}
	s.Location = loc

	var err error
	if s.DBBusyTimeout, err = ParseDurationOrDefault("db.busy_timeout", c.DB.BusyTimeout, 5*time.Second); err != nil {
		return nil, err
	}
	if s.HTTPRead, err = ParseDurationOrDefault("http.read_timeout", c.HTTP.ReadTimeout, 10*time.Second); err != nil {
		return nil, err
	}
	if s.HTTPWrite, err = ParseDurationOrDefault("http.write_timeout", c.HTTP.WriteTimeout, 10*time.Second); err != nil {
		return nil, err
	}
	if s.JobTimeout, err = ParseDurationOrDefault("scheduler.job_timeout", c.Scheduler.JobTimeout, 60*time.Second); err != nil {
		return nil, err
	}
	if s.ShutdownGrace, err = ParseDurationOrDefault("scheduler.shutdown_grace", c.Scheduler.ShutdownGrace, 10*time.Second); err != nil {
		return nil, err
	}
	if s.DueTodayEvery, err = ParseDurationField("scheduler.due_today.every", c.Scheduler.DueToday.Every); err != nil {
		return nil, err
	}
	if s.DueTomorrowEvery, err = ParseDurationField("scheduler.due_tomorrow.every", c.Scheduler.DueTomorrow.Every); err != nil {
		return nil, err
	}
	if s.OverdueEvery, err = ParseDurationField("scheduler.overdue.every", c.Scheduler.Overdue.Every); err != nil {
		return nil, err
	}
	if s.PushSendTimeout, err = ParseDurationOrDefault("push.send_timeout", c.Push.SendTimeout, 2*time.Second); err != nil {
		return nil, err
	}
	if s.PushRatePerSec <= 0 {
		s.PushRatePerSec = 50
	}

	// Retention is special-cased: a zero or negative window would make the
	// cleanup job delete everything ever written.
	raw := strings.TrimSpace(c.Scheduler.Cleanup.Retention)
	if raw == "" {
		s.CleanupRetention = 720 * time.Hour
	} else {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("scheduler.cleanup.retention: invalid duration %q: %w", raw, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("scheduler.cleanup.retention: must be > 0, got %q", raw)
		}
		s.CleanupRetention = d
	}

	for _, t := range []struct{ path, v string }{
		{"scheduler.due_today.daily_at", c.Scheduler.DueToday.DailyAt},
		{"scheduler.due_tomorrow.daily_at", c.Scheduler.DueTomorrow.DailyAt},
		{"scheduler.overdue.daily_at", c.Scheduler.Overdue.DailyAt},
		{"scheduler.cleanup.daily_at", c.Scheduler.Cleanup.DailyAt},
	} {
		if err := ValidateHHMM(t.path, t.v); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// ValidateHHMM checks a "HH:MM" daily-trigger field. Empty is allowed (the
// trigger is simply not armed).
func ValidateHHMM(path, raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return fmt.Errorf("%s: invalid time %q, expected HH:MM", path, raw)
	}
	h, m := parts[0], parts[1]
	if len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return fmt.Errorf("%s: invalid time %q, expected HH:MM", path, raw)
	}
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return fmt.Errorf("%s: invalid time %q, expected HH:MM", path, raw)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return fmt.Errorf("%s: invalid time %q, expected HH:MM", path, raw)
	}
	return nil
}
