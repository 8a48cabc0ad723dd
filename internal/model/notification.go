package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	KindTaskDueSoon NotificationKind = "task_due_soon"
	KindTaskOverdue NotificationKind = "task_overdue"
)

type NotificationPriority string

const (
	NotifyLow    NotificationPriority = "low"
	NotifyMedium NotificationPriority = "medium"
	NotifyHigh   NotificationPriority = "high"
	NotifyUrgent NotificationPriority = "urgent"
)

// TaskSnapshot is the task data embedded in every notification, frozen at
// detection time so later task edits don't rewrite history.
type TaskSnapshot struct {
	ID       int64        `json:"id"`
	Title    string       `json:"title"`
	DueAt    time.Time    `json:"due_at"`
	Priority TaskPriority `json:"priority"`
	Status   TaskStatus   `json:"status"`
}

// NotificationPayload is the in-memory notification unit built by the
// detection engine, one per (task, assignee) pair. Immutable once built.
type NotificationPayload struct {
	UserID    int64                `json:"user_id"`
	Kind      NotificationKind     `json:"kind"`
	Priority  NotificationPriority `json:"priority"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Task      TaskSnapshot         `json:"task"`
	CreatedAt time.Time            `json:"created_at"`
}

// NotificationRecord is the persisted form of a payload. Records are
// append-only; the cleanup job deletes them once they age past the retention
// window, nothing ever mutates them.
type NotificationRecord struct {
	ID        string               `json:"id"`
	UserID    int64                `json:"user_id"`
	TaskID    int64                `json:"task_id"`
	Kind      NotificationKind     `json:"kind"`
	Priority  NotificationPriority `json:"priority"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Task      TaskSnapshot         `json:"task"`
	CreatedAt time.Time            `json:"created_at"`
}

// NewRecord materializes a payload into a record with a fresh id.
func NewRecord(p NotificationPayload) NotificationRecord {
	return NotificationRecord{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		TaskID:    p.Task.ID,
		Kind:      p.Kind,
		Priority:  p.Priority,
		Title:     p.Title,
		Message:   p.Message,
		Task:      p.Task,
		CreatedAt: p.CreatedAt,
	}
}
