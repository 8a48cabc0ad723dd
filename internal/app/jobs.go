package app

import (
	"context"
	"fmt"
	"time"

	"taskping/internal/detect"
	"taskping/internal/dispatch"
	"taskping/internal/model"
	"taskping/internal/scheduler"
)

// Job names are part of the operator surface: they appear in the status
// endpoint and in manual-trigger URLs.
const (
	JobDueToday    = "due_today"
	JobDueTomorrow = "due_tomorrow"
	JobOverdue     = "overdue"
	JobCleanup     = "cleanup"
)

func (a *App) jobSpecs(eng *detect.Engine, disp *dispatch.Dispatcher) []scheduler.JobSpec {
	detectJob := func(find func(context.Context, time.Time) ([]model.NotificationPayload, error)) scheduler.RunFunc {
		return func(ctx context.Context) (scheduler.RunResult, error) {
			payloads, err := find(ctx, time.Now())
			if err != nil {
				return scheduler.RunResult{}, err
			}
			rep := disp.Dispatch(ctx, payloads)
			return scheduler.RunResult{
				Detail:  rep.String(),
				Partial: len(rep.Failures) > 0,
			}, nil
		}
	}

	sc := a.cfg.Scheduler
	return []scheduler.JobSpec{
		{
			Name:     JobDueToday,
			Triggers: triggers(a.set.DueTodayEvery, sc.DueToday.DailyAt),
			Run:      detectJob(eng.DueToday),
		},
		{
			Name:     JobDueTomorrow,
			Triggers: triggers(a.set.DueTomorrowEvery, sc.DueTomorrow.DailyAt),
			Run:      detectJob(eng.DueTomorrow),
		},
		{
			Name:     JobOverdue,
			Triggers: triggers(a.set.OverdueEvery, sc.Overdue.DailyAt),
			Run:      detectJob(eng.Overdue),
		},
		{
			Name:     JobCleanup,
			Triggers: triggers(0, sc.Cleanup.DailyAt),
			Run: func(ctx context.Context) (scheduler.RunResult, error) {
				cutoff := time.Now().Add(-a.set.CleanupRetention)
				n, err := a.store.DeleteOlderThan(ctx, cutoff)
				if err != nil {
					return scheduler.RunResult{}, err
				}
				return scheduler.RunResult{Detail: fmt.Sprintf("deleted=%d", n)}, nil
			},
		},
	}
}

func triggers(every time.Duration, dailyAt string) []scheduler.Trigger {
	var ts []scheduler.Trigger
	if every > 0 {
		ts = append(ts, scheduler.Trigger{Every: every})
	}
	if dailyAt != "" {
		ts = append(ts, scheduler.Trigger{DailyAt: dailyAt})
	}
	return ts
}
