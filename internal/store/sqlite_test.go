package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"taskping/internal/model"
	"taskping/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "taskping.db"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedTask(t *testing.T, st Store, task model.Task) {
	t.Helper()
	if err := st.UpsertTask(context.Background(), task); err != nil {
		t.Fatalf("UpsertTask error: %v", err)
	}
}

func record(userID, taskID int64, kind model.NotificationKind, at time.Time) model.NotificationRecord {
	return model.NotificationRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		TaskID:    taskID,
		Kind:      kind,
		Priority:  model.NotifyHigh,
		Title:     "Task Due Today",
		Message:   "m",
		Task:      model.TaskSnapshot{ID: taskID, Title: "t", DueAt: at},
		CreatedAt: at,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{}, logx.Nop()); err == nil {
		t.Fatal("Open with empty path succeeded")
	}
}

func TestDueBetweenFiltersWindowAndStatus(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	seedTask(t, st, model.Task{ID: 1, Title: "in window", DueAt: base.Add(10 * time.Hour), Priority: model.PriorityHigh, Status: model.StatusTodo, Assignees: []int64{1, 2}})
	seedTask(t, st, model.Task{ID: 2, Title: "before", DueAt: base.Add(-time.Hour), Priority: model.PriorityLow, Status: model.StatusTodo})
	seedTask(t, st, model.Task{ID: 3, Title: "at end", DueAt: base.AddDate(0, 0, 1), Priority: model.PriorityLow, Status: model.StatusTodo})
	seedTask(t, st, model.Task{ID: 4, Title: "done", DueAt: base.Add(12 * time.Hour), Priority: model.PriorityLow, Status: model.StatusDone})

	got, err := st.DueBetween(ctx, base, base.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("DueBetween error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("got %+v, want only task 1", got)
	}
	if len(got[0].Assignees) != 2 || got[0].Assignees[0] != 1 || got[0].Assignees[1] != 2 {
		t.Fatalf("assignees = %v", got[0].Assignees)
	}
	if !got[0].DueAt.Equal(base.Add(10 * time.Hour)) {
		t.Fatalf("DueAt = %v", got[0].DueAt)
	}
}

func TestOverdueBeforeExcludesBoundary(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	cut := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	seedTask(t, st, model.Task{ID: 1, Title: "old", DueAt: cut.Add(-time.Second), Status: model.StatusInProgress})
	seedTask(t, st, model.Task{ID: 2, Title: "boundary", DueAt: cut, Status: model.StatusTodo})
	seedTask(t, st, model.Task{ID: 3, Title: "old cancelled", DueAt: cut.Add(-time.Hour), Status: model.StatusCancelled})

	got, err := st.OverdueBefore(ctx, cut)
	if err != nil {
		t.Fatalf("OverdueBefore error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("got %+v, want only task 1", got)
	}
}

func TestUpsertTaskReplacesAssignees(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	due := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	seedTask(t, st, model.Task{ID: 1, Title: "v1", DueAt: due, Status: model.StatusTodo, Assignees: []int64{1, 2}})
	seedTask(t, st, model.Task{ID: 1, Title: "v2", DueAt: due, Status: model.StatusTodo, Assignees: []int64{3}})

	got, err := st.DueBetween(ctx, due.Add(-time.Hour), due.Add(time.Hour))
	if err != nil {
		t.Fatalf("DueBetween error: %v", err)
	}
	if len(got) != 1 || got[0].Title != "v2" {
		t.Fatalf("got %+v", got)
	}
	if len(got[0].Assignees) != 1 || got[0].Assignees[0] != 3 {
		t.Fatalf("assignees = %v", got[0].Assignees)
	}
}

func TestHasSinceDayBoundary(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	dayStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	// Yesterday's record must not suppress today's notification.
	if err := st.Append(ctx, record(1, 7, model.KindTaskDueSoon, dayStart.Add(-2*time.Hour))); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	seen, err := st.HasSince(ctx, 1, 7, model.KindTaskDueSoon, dayStart)
	if err != nil {
		t.Fatalf("HasSince error: %v", err)
	}
	if seen {
		t.Fatal("yesterday's record suppressed today")
	}

	if err := st.Append(ctx, record(1, 7, model.KindTaskDueSoon, dayStart.Add(9*time.Hour))); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	seen, err = st.HasSince(ctx, 1, 7, model.KindTaskDueSoon, dayStart)
	if err != nil {
		t.Fatalf("HasSince error: %v", err)
	}
	if !seen {
		t.Fatal("today's record not found")
	}

	// Different kind, user or task must not match.
	for name, args := range map[string][3]any{
		"other kind": {int64(1), int64(7), model.KindTaskOverdue},
		"other user": {int64(2), int64(7), model.KindTaskDueSoon},
		"other task": {int64(1), int64(8), model.KindTaskDueSoon},
	} {
		seen, err := st.HasSince(ctx, args[0].(int64), args[1].(int64), args[2].(model.NotificationKind), dayStart)
		if err != nil {
			t.Fatalf("%s: HasSince error: %v", name, err)
		}
		if seen {
			t.Fatalf("%s: unexpected match", name)
		}
	}
}

func TestDeleteOlderThanBoundary(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	cutoff := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if err := st.Append(ctx, record(1, 1, model.KindTaskDueSoon, cutoff.Add(-time.Second))); err != nil {
		t.Fatal(err)
	}
	if err := st.Append(ctx, record(1, 2, model.KindTaskDueSoon, cutoff)); err != nil {
		t.Fatal(err)
	}
	if err := st.Append(ctx, record(1, 3, model.KindTaskDueSoon, cutoff.Add(time.Second))); err != nil {
		t.Fatal(err)
	}

	n, err := st.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteOlderThan error: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted %d records, want 1 (strictly before cutoff)", n)
	}

	// Records at and after the cutoff survive.
	for _, taskID := range []int64{2, 3} {
		seen, err := st.HasSince(ctx, 1, taskID, model.KindTaskDueSoon, cutoff)
		if err != nil {
			t.Fatal(err)
		}
		if !seen {
			t.Fatalf("record for task %d was deleted", taskID)
		}
	}

	// Idempotent second run deletes nothing.
	n, err = st.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("second run deleted %d records", n)
	}
}
