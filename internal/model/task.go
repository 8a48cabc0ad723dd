package model

import "time"

type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
	StatusCancelled  TaskStatus = "CANCELLED"
)

// Active reports whether a task in this status is still eligible for
// due/overdue detection. Completed and cancelled tasks never remind.
func (s TaskStatus) Active() bool {
	return s == StatusTodo || s == StatusInProgress
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

// Task is the read-only view of a task record as seen by the reminder
// pipeline. Task CRUD lives in the surrounding application; this daemon only
// queries due dates, status and assignees.
type Task struct {
	ID        int64        `json:"id"`
	Title     string       `json:"title"`
	DueAt     time.Time    `json:"due_at"`
	Priority  TaskPriority `json:"priority"`
	Status    TaskStatus   `json:"status"`
	Assignees []int64      `json:"assignees"`
}

// Snapshot freezes the task fields that travel inside a notification.
func (t Task) Snapshot() TaskSnapshot {
	return TaskSnapshot{
		ID:       t.ID,
		Title:    t.Title,
		DueAt:    t.DueAt,
		Priority: t.Priority,
		Status:   t.Status,
	}
}
