package ports

import (
	"context"
	"time"
)

// Event is one task lifecycle notification for external observers.
type Event struct {
	Type     string    `json:"type"` // queued, started, progress, completed, failed, canceled
	TaskID   string    `json:"task_id"`
	DeviceID int64     `json:"device_id"`
	Status   string    `json:"status"`
	Progress int       `json:"progress"`
	Kind     string    `json:"sync_kind,omitempty"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

// EventPublisher fans task lifecycle events out to an external feed. Publish
// failures are logged and never fail the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}
