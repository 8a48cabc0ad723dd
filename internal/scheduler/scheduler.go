package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"taskping/pkg/logx"
)

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron

	jobs  map[string]*job
	order []string

	started    bool
	baseCtx    context.Context
	baseCancel context.CancelFunc
	runWG      sync.WaitGroup
}

func New(cfg Config, log logx.Logger) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:    log,
		cfg:    cfg,
		loc:    loc,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		jobs:   map[string]*job{},
	}
}

// Register adds a named job. It must be called before Start; trigger specs
// are validated here so a misconfigured cadence fails at startup rather than
// silently never firing.
func (s *Service) Register(spec JobSpec) error {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return errors.New("job name required")
	}
	if spec.Run == nil {
		return fmt.Errorf("job %q: run function required", name)
	}
	if len(spec.Triggers) == 0 {
		return fmt.Errorf("job %q: at least one trigger required", name)
	}
	for _, tr := range spec.Triggers {
		cs, err := tr.cronSpec()
		if err != nil {
			return fmt.Errorf("job %q: %w", name, err)
		}
		if _, err := s.parser.Parse(cs); err != nil {
			return fmt.Errorf("job %q: invalid trigger %s: %w", name, tr, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("job %q: cannot register after start", name)
	}
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %q: already registered", name)
	}
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	s.jobs[name] = &job{
		name:        name,
		triggers:    append([]Trigger(nil), spec.Triggers...),
		timeout:     timeout,
		run:         spec.Run,
		lastOutcome: OutcomeNeverRan,
	}
	s.order = append(s.order, name)
	return nil
}

// Start arms all registered triggers. Job bodies run on their own goroutines
// detached from the caller's context; Stop owns their cancellation.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}

	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))

	for _, name := range s.order {
		j := s.jobs[name]
		entries := make([]cron.EntryID, 0, len(j.triggers))
		for _, tr := range j.triggers {
			cs, err := tr.cronSpec()
			if err != nil {
				return fmt.Errorf("job %q: %w", name, err)
			}
			jj := j
			eid, err := s.c.AddFunc(cs, func() { _ = s.fire(jj, trigAuto) })
			if err != nil {
				return fmt.Errorf("job %q: arm trigger %s: %w", name, tr, err)
			}
			entries = append(entries, eid)
		}
		j.mu.Lock()
		j.entries = entries
		j.mu.Unlock()
	}

	s.c.Start()
	s.started = true
	s.log.Info("scheduler started",
		logx.Int("jobs", len(s.jobs)),
		logx.String("tz", s.loc.String()))
	return nil
}

// Stop disarms all triggers immediately, then waits up to the shutdown grace
// for in-flight job bodies. Jobs still running after the grace get their
// contexts cancelled and are abandoned; they cannot be interrupted mid-write.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	c := s.c
	s.c = nil
	cancel := s.baseCancel
	s.baseCancel = nil
	s.baseCtx = nil
	grace := s.cfg.ShutdownGrace
	s.mu.Unlock()

	start := time.Now()
	if c != nil {
		<-c.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		s.runWG.Wait()
		close(done)
	}()

	if grace <= 0 {
		grace = 10 * time.Second
	}
	tmr := time.NewTimer(grace)
	defer tmr.Stop()
	select {
	case <-done:
	case <-tmr.C:
		s.log.Warn("shutdown grace elapsed; cancelling in-flight jobs",
			logx.Duration("grace", grace))
		if cancel != nil {
			cancel()
		}
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

// Running reports the scheduler lifecycle state.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
