package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"taskping/pkg/logx"
)

// TriggerNow runs the named job immediately as a one-shot, outside its
// cadence. It is subject to the same non-overlap rule as scheduled firings:
// ErrAlreadyRunning is returned if the job is mid-run. The run updates the
// same descriptor state as automatic runs, recorded as manually triggered.
func (s *Service) TriggerNow(name string) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return ErrUnknownJob
	}
	return s.fire(j, trigManual)
}

// fire starts one execution of j unless it is already running. An automatic
// firing that hits a running job is recorded as a skip on the descriptor;
// the skip never overwrites the in-flight run's eventual outcome.
func (s *Service) fire(j *job, by string) error {
	j.mu.Lock()
	if j.running {
		j.skips++
		j.lastSkip = time.Now()
		j.mu.Unlock()
		s.log.Info("job firing skipped (previous run still running)",
			logx.String("job", j.name), logx.String("by", by))
		return ErrAlreadyRunning
	}
	j.running = true
	j.mu.Unlock()

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx == nil {
		// Stop() raced us; undo the claim.
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
		return ErrNotStarted
	}

	s.runWG.Add(1)
	go s.exec(ctx, j, by)
	return nil
}

func (s *Service) exec(ctx context.Context, j *job, by string) {
	defer s.runWG.Done()
	start := time.Now()

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	var res RunResult
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				s.log.Error("panic in job",
					logx.String("job", j.name),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
			}
		}()
		res, err = j.run(ctx)
	}()

	dur := time.Since(start)
	outcome := OutcomeSuccess
	switch {
	case err != nil:
		outcome = OutcomeFailure
	case res.Partial:
		outcome = OutcomePartial
	}

	j.mu.Lock()
	j.running = false
	j.lastStart = start
	j.lastEnd = time.Now()
	j.lastOutcome = outcome
	j.lastDetail = res.Detail
	j.lastBy = by
	if err != nil {
		j.lastError = err.Error()
	} else {
		j.lastError = ""
	}
	j.mu.Unlock()

	switch outcome {
	case OutcomeFailure:
		s.log.Warn("job failed",
			logx.String("job", j.name), logx.String("by", by),
			logx.Duration("dur", dur), logx.Err(err))
	case OutcomePartial:
		s.log.Warn("job completed with partial failures",
			logx.String("job", j.name), logx.String("by", by),
			logx.Duration("dur", dur), logx.String("detail", res.Detail))
	default:
		// Avoid noisy logs for very frequent jobs: only elevate to INFO when
		// the run took noticeable time.
		if dur >= 750*time.Millisecond {
			s.log.Info("job completed",
				logx.String("job", j.name), logx.String("by", by),
				logx.Duration("dur", dur), logx.String("detail", res.Detail))
		} else {
			s.log.Debug("job completed",
				logx.String("job", j.name), logx.String("by", by),
				logx.Duration("dur", dur), logx.String("detail", res.Detail))
		}
	}
}
