// Package detect classifies tasks into due-today, due-tomorrow and overdue
// sets and builds one notification payload per (task, assignee) pair.
//
// Calendar-day boundaries use a single configured timezone for the whole
// daemon, not per-user zones. Re-notification policy: each (task, assignee,
// kind) pair fires at most once per calendar day, enforced by querying the
// notification sink for a record created since the start of the day. This
// covers overdue tasks too, so the short overdue cadence cannot refire the
// same alert all day.
package detect

import (
	"context"
	"fmt"
	"time"

	"taskping/internal/model"
	"taskping/pkg/logx"
)

// TaskSource is the read query surface over task records.
type TaskSource interface {
	DueBetween(ctx context.Context, from, to time.Time) ([]model.Task, error)
	OverdueBefore(ctx context.Context, before time.Time) ([]model.Task, error)
}

// DupGuard answers "was this pair already notified since the given time".
type DupGuard interface {
	HasSince(ctx context.Context, userID, taskID int64, kind model.NotificationKind, since time.Time) (bool, error)
}

type Engine struct {
	tasks TaskSource
	guard DupGuard
	loc   *time.Location
	log   logx.Logger
}

func NewEngine(tasks TaskSource, guard DupGuard, loc *time.Location, log logx.Logger) *Engine {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{tasks: tasks, guard: guard, loc: loc, log: log}
}

// DueToday returns payloads for active tasks whose due date falls on the same
// calendar day as now.
func (e *Engine) DueToday(ctx context.Context, now time.Time) ([]model.NotificationPayload, error) {
	start := e.dayStart(now)
	end := start.AddDate(0, 0, 1)
	tasks, err := e.tasks.DueBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("query tasks due today: %w", err)
	}
	return e.build(ctx, tasks, now, start, func(t model.Task) (model.NotificationPayload, bool) {
		return model.NotificationPayload{
			Kind:     model.KindTaskDueSoon,
			Priority: model.NotifyHigh,
			Title:    "Task Due Today",
			Message:  fmt.Sprintf("Task '%s' is due today at %s", t.Title, t.DueAt.In(e.loc).Format("15:04")),
		}, true
	})
}

// DueTomorrow returns payloads for active tasks due on the next calendar day.
func (e *Engine) DueTomorrow(ctx context.Context, now time.Time) ([]model.NotificationPayload, error) {
	start := e.dayStart(now).AddDate(0, 0, 1)
	end := start.AddDate(0, 0, 1)
	tasks, err := e.tasks.DueBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("query tasks due tomorrow: %w", err)
	}
	return e.build(ctx, tasks, now, e.dayStart(now), func(t model.Task) (model.NotificationPayload, bool) {
		return model.NotificationPayload{
			Kind:     model.KindTaskDueSoon,
			Priority: model.NotifyMedium,
			Title:    "Task Due Tomorrow",
			Message:  fmt.Sprintf("Task '%s' is due tomorrow at %s", t.Title, t.DueAt.In(e.loc).Format("15:04")),
		}, true
	})
}

// Overdue returns payloads for active tasks whose due timestamp is strictly
// before the start of today. The start-of-day cut keeps this set disjoint
// from DueToday: a task due earlier today is due-today, not overdue.
func (e *Engine) Overdue(ctx context.Context, now time.Time) ([]model.NotificationPayload, error) {
	start := e.dayStart(now)
	tasks, err := e.tasks.OverdueBefore(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("query overdue tasks: %w", err)
	}
	return e.build(ctx, tasks, now, start, func(t model.Task) (model.NotificationPayload, bool) {
		return model.NotificationPayload{
			Kind:     model.KindTaskOverdue,
			Priority: model.NotifyUrgent,
			Title:    "Task Overdue",
			Message:  fmt.Sprintf("Task '%s' is overdue since %s", t.Title, t.DueAt.In(e.loc).Format("2006-01-02 15:04")),
		}, true
	})
}

// build fans each task out to its assignees, applying the per-day duplicate
// guard. A guard lookup failure skips just that pair: missing one reminder
// beats re-alerting a user every few minutes until the sink recovers.
func (e *Engine) build(ctx context.Context, tasks []model.Task, now, since time.Time, mk func(model.Task) (model.NotificationPayload, bool)) ([]model.NotificationPayload, error) {
	var out []model.NotificationPayload
	for _, t := range tasks {
		if !t.Status.Active() {
			continue
		}
		base, ok := mk(t)
		if !ok {
			continue
		}
		for _, uid := range t.Assignees {
			seen, err := e.guard.HasSince(ctx, uid, t.ID, base.Kind, since)
			if err != nil {
				e.log.Warn("duplicate guard lookup failed",
					logx.Int64("task", t.ID), logx.Int64("user", uid), logx.Err(err))
				continue
			}
			if seen {
				e.log.Debug("already notified today; skipping",
					logx.Int64("task", t.ID), logx.Int64("user", uid), logx.String("kind", string(base.Kind)))
				continue
			}
			p := base
			p.UserID = uid
			p.Task = t.Snapshot()
			p.CreatedAt = now
			out = append(out, p)
		}
	}
	return out, nil
}

func (e *Engine) dayStart(t time.Time) time.Time {
	y, m, d := t.In(e.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.loc)
}
