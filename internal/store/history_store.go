package store

import (
	"context"
	"time"

	"fwsync/internal/domain"
)

// HistoryStore records sync outcomes. Entries are append-only; the engine
// never mutates or deletes them.
type HistoryStore struct {
	db *DB
}

func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Create appends one history entry and fills in its assigned id.
func (s *HistoryStore) Create(ctx context.Context, h *domain.HistoryEntry) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_history (device_id, sync_kind, status, message, is_batch, batch_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.DeviceID, h.Kind, h.Result, h.Message, boolInt(h.IsBatch), h.BatchID, h.CreatedAt.UnixNano())
	if err != nil {
		return err
	}
	h.ID, err = res.LastInsertId()
	return err
}

// ListByDevice returns a device's history, newest first.
func (s *HistoryStore) ListByDevice(ctx context.Context, deviceID int64, limit int) ([]*domain.HistoryEntry, error) {
	return s.queryHistory(ctx, `
		SELECT id, device_id, sync_kind, status, message, is_batch, batch_id, created_at
		FROM sync_history WHERE device_id = ? ORDER BY created_at DESC LIMIT ?`, deviceID, limit)
}

// ListByBatch returns every entry produced by one batch, in execution order.
func (s *HistoryStore) ListByBatch(ctx context.Context, batchID string) ([]*domain.HistoryEntry, error) {
	return s.queryHistory(ctx, `
		SELECT id, device_id, sync_kind, status, message, is_batch, batch_id, created_at
		FROM sync_history WHERE batch_id = ? ORDER BY created_at ASC`, batchID)
}

func (s *HistoryStore) queryHistory(ctx context.Context, q string, args ...any) ([]*domain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		var (
			h         domain.HistoryEntry
			isBatch   int
			createdAt int64
		)
		if err := rows.Scan(&h.ID, &h.DeviceID, &h.Kind, &h.Result, &h.Message, &isBatch, &h.BatchID, &createdAt); err != nil {
			return nil, err
		}
		h.IsBatch = isBatch != 0
		h.CreatedAt = time.Unix(0, createdAt)
		entries = append(entries, &h)
	}
	return entries, rows.Err()
}
