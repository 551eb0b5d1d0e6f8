package domain

import (
	"fmt"
	"time"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCanceled  TaskStatus = "canceled"
)

// Terminal reports whether no further transitions are allowed.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Priority orders pending tasks; a lower value wins.
type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityNormal Priority = 2
	PriorityLow    Priority = 3
)

// Task is one unit of requested synchronization work against a device.
type Task struct {
	ID       string     `json:"id"`
	DeviceID int64      `json:"device_id"`
	Name     string     `json:"name"`
	Kinds    []SyncKind `json:"sync_kinds"` // insertion order preserved

	Status      TaskStatus `json:"status"`
	Progress    int        `json:"progress"` // 0-100
	CurrentKind *SyncKind  `json:"current_sync_kind,omitempty"`
	Message     string     `json:"message"`

	Priority      Priority `json:"priority"`
	QueuePosition int      `json:"queue_position"` // dense rank among pending, 0 otherwise

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	BatchID string `json:"batch_id,omitempty"`
	IsBatch bool   `json:"is_batch"`
}

// Active reports whether the task still occupies the queue.
func (t *Task) Active() bool {
	return t.Status == StatusPending || t.Status == StatusRunning
}

// CanCancel reports whether a cancel request is valid for the current status.
func (t *Task) CanCancel() bool {
	return t.Active()
}

// Elapsed is the wall time between start and completion, or start and now for
// a task still running. Zero before the task has started.
func (t *Task) Elapsed() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if t.CompletedAt != nil {
		end = *t.CompletedAt
	}
	return end.Sub(*t.StartedAt)
}

// ElapsedString renders the elapsed time as mm:ss.
func (t *Task) ElapsedString() string {
	secs := int(t.Elapsed().Seconds())
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// BatchRef carries the batch correlation a task hands to each kind handler.
type BatchRef struct {
	ID      string
	IsBatch bool
}
