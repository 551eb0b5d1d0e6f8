package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fwsync/internal/domain"
)

// TaskStore owns the sync_tasks table. Every status transition runs inside a
// transaction that re-reads the current status and re-validates the
// precondition before writing, so concurrent mutations (a cancel racing a
// progress update) can never produce a half-updated task.
type TaskStore struct {
	db *DB
}

func NewTaskStore(db *DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskColumns = `id, device_id, name, sync_kinds, status, progress, current_kind,
	message, priority, queue_position, created_at, started_at, completed_at, batch_id, is_batch`

func scanTask(row interface{ Scan(...any) error }) (*domain.Task, error) {
	var (
		t           domain.Task
		kinds       string
		currentKind sql.NullString
		createdAt   int64
		startedAt   sql.NullInt64
		completedAt sql.NullInt64
		isBatch     int
	)
	err := row.Scan(&t.ID, &t.DeviceID, &t.Name, &kinds, &t.Status, &t.Progress, &currentKind,
		&t.Message, &t.Priority, &t.QueuePosition, &createdAt, &startedAt, &completedAt, &t.BatchID, &isBatch)
	if err != nil {
		return nil, err
	}
	for _, k := range strings.Split(kinds, ",") {
		if k != "" {
			t.Kinds = append(t.Kinds, domain.SyncKind(k))
		}
	}
	if currentKind.Valid {
		k := domain.SyncKind(currentKind.String)
		t.CurrentKind = &k
	}
	t.CreatedAt = time.Unix(0, createdAt)
	if startedAt.Valid {
		ts := time.Unix(0, startedAt.Int64)
		t.StartedAt = &ts
	}
	if completedAt.Valid {
		ts := time.Unix(0, completedAt.Int64)
		t.CompletedAt = &ts
	}
	t.IsBatch = isBatch != 0
	return &t, nil
}

func joinKinds(kinds []domain.SyncKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

// Create inserts a new pending task.
func (s *TaskStore) Create(ctx context.Context, t *domain.Task) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_tasks (id, device_id, name, sync_kinds, status, progress, message,
			priority, queue_position, created_at, batch_id, is_batch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.DeviceID, t.Name, joinKinds(t.Kinds), t.Status, t.Progress, t.Message,
		t.Priority, t.QueuePosition, t.CreatedAt.UnixNano(), t.BatchID, boolInt(t.IsBatch))
	return err
}

// Get returns a task by id, or domain.ErrNotFound.
func (s *TaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM sync_tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return t, err
}

// DeviceTasks lists a device's tasks, most recent first. With includeCompleted
// false only pending and running tasks are returned.
func (s *TaskStore) DeviceTasks(ctx context.Context, deviceID int64, limit int, includeCompleted bool) ([]*domain.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM sync_tasks WHERE device_id = ?`
	if !includeCompleted {
		q += ` AND status IN ('pending', 'running')`
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	return s.queryTasks(ctx, q, deviceID, limit)
}

// Running returns the currently running task, or nil when none is running.
func (s *TaskStore) Running(ctx context.Context) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM sync_tasks WHERE status = 'running' LIMIT 1`)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// NextPending returns the pending task with the lowest priority value, ties
// broken by queue position. Nil when the queue is empty. Read-only.
func (s *TaskStore) NextPending(ctx context.Context) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM sync_tasks WHERE status = 'pending'
		ORDER BY priority ASC, queue_position ASC LIMIT 1`)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// CountByStatus returns the number of tasks in the given status.
func (s *TaskStore) CountByStatus(ctx context.Context, status domain.TaskStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_tasks WHERE status = ?`, status).Scan(&n)
	return n, err
}

// MaxPendingPosition returns the highest queue position among pending tasks,
// 0 when the queue is empty.
func (s *TaskStore) MaxPendingPosition(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(queue_position), 0) FROM sync_tasks WHERE status = 'pending'`).Scan(&n)
	return n, err
}

// RecentTerminal returns the most recently finished tasks (completed, failed
// or canceled), newest first.
func (s *TaskStore) RecentTerminal(ctx context.Context, limit int) ([]*domain.Task, error) {
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM sync_tasks
		WHERE status IN ('completed', 'failed', 'canceled')
		ORDER BY completed_at DESC LIMIT ?`, limit)
}

// ReorderPending recomputes a dense 1..N queue position for all pending tasks
// ordered by priority then creation time. Idempotent; positions of running and
// terminal tasks are untouched.
func (s *TaskStore) ReorderPending(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM sync_tasks WHERE status = 'pending'
		ORDER BY priority ASC, created_at ASC`)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sync_tasks SET queue_position = ? WHERE id = ?`, i+1, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// MarkRunning transitions a pending task to running, stamping the start time,
// resetting progress and clearing its queue position. Fails with
// domain.ErrInvalidState unless the task is pending.
func (s *TaskStore) MarkRunning(ctx context.Context, id, message string) (*domain.Task, error) {
	return s.transition(ctx, id, func(cur *domain.Task, tx *sql.Tx) error {
		if cur.Status != domain.StatusPending {
			return fmt.Errorf("cannot start task in status %q: %w", cur.Status, domain.ErrInvalidState)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE sync_tasks
			SET status = 'running', started_at = ?, progress = 0, queue_position = 0,
				current_kind = NULL, message = ?
			WHERE id = ?`, time.Now().UnixNano(), message, id)
		return err
	})
}

// UpdateProgress records progress on a running task. Kind and message are
// only written when non-nil / non-empty. Fails with domain.ErrInvalidState
// unless the task is running.
func (s *TaskStore) UpdateProgress(ctx context.Context, id string, progress int, kind *domain.SyncKind, message string) (*domain.Task, error) {
	return s.transition(ctx, id, func(cur *domain.Task, tx *sql.Tx) error {
		if cur.Status != domain.StatusRunning {
			return fmt.Errorf("cannot update progress in status %q: %w", cur.Status, domain.ErrInvalidState)
		}
		set := "progress = ?"
		args := []any{progress}
		if kind != nil {
			set += ", current_kind = ?"
			args = append(args, string(*kind))
		}
		if message != "" {
			set += ", message = ?"
			args = append(args, message)
		}
		args = append(args, id)
		_, err := tx.ExecContext(ctx, `UPDATE sync_tasks SET `+set+` WHERE id = ?`, args...)
		return err
	})
}

// MarkComplete finishes a running (or, defensively, still pending) task.
// Progress is forced to 100 only on success.
func (s *TaskStore) MarkComplete(ctx context.Context, id string, success bool, message string) (*domain.Task, error) {
	return s.transition(ctx, id, func(cur *domain.Task, tx *sql.Tx) error {
		if cur.Status != domain.StatusRunning && cur.Status != domain.StatusPending {
			return fmt.Errorf("cannot complete task in status %q: %w", cur.Status, domain.ErrInvalidState)
		}
		status := domain.StatusFailed
		progress := cur.Progress
		if success {
			status = domain.StatusCompleted
			progress = 100
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE sync_tasks
			SET status = ?, completed_at = ?, progress = ?, queue_position = 0, message = ?
			WHERE id = ?`, status, time.Now().UnixNano(), progress, message, id)
		return err
	})
}

// MarkCanceled cancels a pending or running task. The second return value
// reports whether the task had been pending, in which case the caller must
// reorder the queue.
func (s *TaskStore) MarkCanceled(ctx context.Context, id, message string) (*domain.Task, bool, error) {
	wasPending := false
	t, err := s.transition(ctx, id, func(cur *domain.Task, tx *sql.Tx) error {
		if !cur.CanCancel() {
			return fmt.Errorf("cannot cancel task in status %q: %w", cur.Status, domain.ErrInvalidState)
		}
		wasPending = cur.Status == domain.StatusPending
		_, err := tx.ExecContext(ctx, `
			UPDATE sync_tasks
			SET status = 'canceled', completed_at = ?, queue_position = 0, message = ?
			WHERE id = ?`, time.Now().UnixNano(), message, id)
		return err
	})
	return t, wasPending, err
}

// transition re-reads the task inside a transaction, lets apply validate the
// precondition and write the update, then returns the fresh row.
func (s *TaskStore) transition(ctx context.Context, id string, apply func(cur *domain.Task, tx *sql.Tx) error) (*domain.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM sync_tasks WHERE id = ?`, id)
	cur, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := apply(cur, tx); err != nil {
		return nil, err
	}

	row = tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM sync_tasks WHERE id = ?`, id)
	updated, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *TaskStore) queryTasks(ctx context.Context, q string, args ...any) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
