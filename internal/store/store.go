package store

import (
	"context"
	"time"

	"taskping/internal/model"
)

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// TaskRepository is the read-only query surface over task records used by the
// detection engine. Both queries return only active tasks (TODO/IN_PROGRESS),
// each with its assignee ids loaded.
type TaskRepository interface {
	// DueBetween returns active tasks with from <= due_at < to.
	DueBetween(ctx context.Context, from, to time.Time) ([]model.Task, error)
	// OverdueBefore returns active tasks with due_at < before.
	OverdueBefore(ctx context.Context, before time.Time) ([]model.Task, error)
}

// NotificationSink is the durable notification store. Records are append-only
// and only leave via DeleteOlderThan.
type NotificationSink interface {
	Append(ctx context.Context, rec model.NotificationRecord) error
	// HasSince reports whether a record of this kind for this (user, task)
	// pair was created at or after since. The detection engine uses it as the
	// duplicate-suppression guard.
	HasSince(ctx context.Context, userID, taskID int64, kind model.NotificationKind, since time.Time) (bool, error)
	// DeleteOlderThan removes records created strictly before cutoff and
	// returns how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store is the full persistence API. Task CRUD belongs to the surrounding
// application; UpsertTask is the minimal write surface kept for tests and
// seed tooling.
type Store interface {
	TaskRepository
	NotificationSink
	UpsertTask(ctx context.Context, t model.Task) error
	Close() error
}
