package domain

import "time"

// SyncResult is the outcome recorded for one sync kind attempt.
type SyncResult string

const (
	ResultSuccess SyncResult = "success"
	ResultFailed  SyncResult = "failed"
)

// HistoryEntry is an immutable audit record of one synchronization attempt
// for one device and one sync kind. Entries produced by a multi-kind task
// share that task's batch id.
type HistoryEntry struct {
	ID       int64      `json:"id"`
	DeviceID int64      `json:"device_id"`
	Kind     SyncKind   `json:"sync_kind"`
	Result   SyncResult `json:"status"`
	Message  string     `json:"message"`

	IsBatch bool   `json:"is_batch"`
	BatchID string `json:"batch_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
