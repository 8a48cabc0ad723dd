package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	ErrUnknownJob     = errors.New("unknown job")
	ErrAlreadyRunning = errors.New("job already running")
	ErrNotStarted     = errors.New("scheduler not started")
)

// Config controls the scheduler service.
type Config struct {
	// Location is the timezone all daily triggers and calendar math use.
	// nil means time.Local.
	Location *time.Location
	// DefaultTimeout applies to jobs registered without their own timeout.
	DefaultTimeout time.Duration
	// ShutdownGrace bounds how long Stop waits for in-flight jobs before
	// cancelling their contexts and returning.
	ShutdownGrace time.Duration
}

// Trigger is one timing rule for a job: either "every N" or "daily at HH:MM".
// A job may carry several triggers.
type Trigger struct {
	Every   time.Duration `json:"every,omitempty"`
	DailyAt string        `json:"daily_at,omitempty"`
}

func (t Trigger) String() string {
	if t.Every > 0 {
		return "every " + t.Every.String()
	}
	return "daily " + t.DailyAt
}

// cronSpec renders the trigger as a robfig/cron spec.
func (t Trigger) cronSpec() (string, error) {
	if t.Every > 0 {
		return fmt.Sprintf("@every %s", t.Every.String()), nil
	}
	h, m, err := parseHHMM(t.DailyAt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

// RunResult is what a job body reports on completion.
type RunResult struct {
	// Detail is a short human summary, e.g. "attempted=3 persisted=3 pushed=1".
	Detail string
	// Partial marks a run that completed but had individual delivery
	// failures. It is reported as a distinct outcome so operators can tell
	// "ran clean" from "ran, some notifications dropped".
	Partial bool
}

type RunFunc func(ctx context.Context) (RunResult, error)

// JobSpec declares a named job and its triggers. Register validates it.
type JobSpec struct {
	Name     string
	Triggers []Trigger
	Timeout  time.Duration // 0 = scheduler default
	Run      RunFunc
}

type Outcome string

const (
	OutcomeNeverRan Outcome = "never_ran"
	OutcomeSuccess  Outcome = "success"
	OutcomePartial  Outcome = "partial_failure"
	OutcomeFailure  Outcome = "failure"
)

const (
	trigAuto   = "auto"
	trigManual = "manual"
)

// job is the runtime descriptor behind one JobSpec. Its mutex guards only
// this job's status fields; different jobs never contend with each other.
type job struct {
	mu sync.Mutex

	name     string
	triggers []Trigger
	timeout  time.Duration
	run      RunFunc

	running     bool
	lastStart   time.Time
	lastEnd     time.Time
	lastOutcome Outcome
	lastDetail  string
	lastError   string
	lastBy      string
	skips       int
	lastSkip    time.Time

	entries []cron.EntryID
}

func parseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
