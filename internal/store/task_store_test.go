package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwsync/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedDevice(t *testing.T, db *DB) *domain.Device {
	t.Helper()
	d := &domain.Device{
		Name:      "edge-fw-1",
		Category:  domain.CategoryFirewall,
		Vendor:    domain.VendorMock,
		IPAddress: "10.0.0.1",
		Port:      443,
	}
	require.NoError(t, NewDeviceStore(db).Create(context.Background(), d))
	return d
}

func makeTask(t *testing.T, tasks *TaskStore, deviceID int64, priority domain.Priority, pos int) *domain.Task {
	t.Helper()
	task := &domain.Task{
		ID:            uuid.NewString(),
		DeviceID:      deviceID,
		Name:          "test sync",
		Kinds:         []domain.SyncKind{domain.KindPolicies},
		Status:        domain.StatusPending,
		Priority:      priority,
		QueuePosition: pos,
	}
	require.NoError(t, tasks.Create(context.Background(), task))
	return task
}

func TestTaskCreateAndGet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	device := seedDevice(t, db)
	tasks := NewTaskStore(db)

	created := &domain.Task{
		ID:       uuid.NewString(),
		DeviceID: device.ID,
		Name:     "nightly sync",
		Kinds:    []domain.SyncKind{domain.KindSystemInfo, domain.KindPolicies},
		Status:   domain.StatusPending,
		Priority: domain.PriorityNormal,
		BatchID:  uuid.NewString(),
		IsBatch:  true,
	}
	require.NoError(t, tasks.Create(ctx, created))

	got, err := tasks.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, []domain.SyncKind{domain.KindSystemInfo, domain.KindPolicies}, got.Kinds)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, created.BatchID, got.BatchID)
	assert.True(t, got.IsBatch)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestTaskGetNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := NewTaskStore(db).Get(context.Background(), "no-such-task")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNextPendingOrdering(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	device := seedDevice(t, db)
	tasks := NewTaskStore(db)

	makeTask(t, tasks, device.ID, domain.PriorityLow, 1)
	high := makeTask(t, tasks, device.ID, domain.PriorityHigh, 2)
	makeTask(t, tasks, device.ID, domain.PriorityNormal, 3)

	next, err := tasks.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, high.ID, next.ID)

	// Queue position breaks ties within a priority.
	highLater := makeTask(t, tasks, device.ID, domain.PriorityHigh, 4)
	next, err = tasks.NextPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, high.ID, next.ID)
	assert.NotEqual(t, highLater.ID, next.ID)
}

func TestNextPendingEmpty(t *testing.T) {
	db := openTestDB(t)
	next, err := NewTaskStore(db).NextPending(context.Background())
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestReorderPendingDense(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	device := seedDevice(t, db)
	tasks := NewTaskStore(db)

	// Created in order: low, normal, high. Positions deliberately wrong.
	low := makeTask(t, tasks, device.ID, domain.PriorityLow, 9)
	normal := makeTask(t, tasks, device.ID, domain.PriorityNormal, 9)
	high := makeTask(t, tasks, device.ID, domain.PriorityHigh, 9)

	require.NoError(t, tasks.ReorderPending(ctx))

	for want, id := range map[int]string{1: high.ID, 2: normal.ID, 3: low.ID} {
		got, err := tasks.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.QueuePosition, "task %s", id)
	}
}

func TestReorderSkipsNonPending(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	device := seedDevice(t, db)
	tasks := NewTaskStore(db)

	running := makeTask(t, tasks, device.ID, domain.PriorityNormal, 1)
	_, err := tasks.MarkRunning(ctx, running.ID, "started")
	require.NoError(t, err)

	pending := makeTask(t, tasks, device.ID, domain.PriorityNormal, 2)
	require.NoError(t, tasks.ReorderPending(ctx))

	got, err := tasks.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.QueuePosition)

	got, err = tasks.Get(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QueuePosition)
}

func TestMarkRunning(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	device := seedDevice(t, db)
	tasks := NewTaskStore(db)

	task := makeTask(t, tasks, device.ID, domain.PriorityNormal, 1)

	got, err := tasks.MarkRunning(ctx, task.ID, "synchronization started")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, got.Status)
	assert.Equal(t, 0, got.Progress)
	assert.Equal(t, 0, got.QueuePosition)
	assert.Equal(t, "synchronization started", got.Message)
	require.NotNil(t, got.StartedAt)

	// A second start must be rejected.
	_, err = tasks.MarkRunning(ctx, task.ID, "again")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestUpdateProgress(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	device := seedDevice(t, db)
	tasks := NewTaskStore(db)

	task := makeTask(t, tasks, device.ID, domain.PriorityNormal, 1)
	_, err := tasks.MarkRunning(ctx, task.ID, "started")
	require.NoError(t, err)

	kind := domain.KindPolicies
	got, err := tasks.UpdateProgress(ctx, task.ID, 35, &kind, "synchronizing policies...")
	require.NoError(t, err)
	assert.Equal(t, 35, got.Progress)
	require.NotNil(t, got.CurrentKind)
	assert.Equal(t, domain.KindPolicies, *got.CurrentKind)
	assert.Equal(t, "synchronizing policies...", got.Message)

	// Empty kind and message leave the previous values alone.
	got, err = tasks.UpdateProgress(ctx, task.ID, 60, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 60, got.Progress)
	require.NotNil(t, got.CurrentKind)
	assert.Equal(t, domain.KindPolicies, *got.CurrentKind)
	assert.Equal(t, "synchronizing policies...", got.Message)
}

func TestUpdateProgressRequiresRunning(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	device := seedDevice(t, db)
	tasks := NewTaskStore(db)

	task := makeTask(t, tasks, device.ID, domain.PriorityNormal, 1)
	_, err := tasks.UpdateProgress(ctx, task.ID, 10, nil, "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestMarkComplete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	device := seedDevice(t, db)
	tasks := NewTaskStore(db)

	task := makeTask(t, tasks, device.ID, domain.PriorityNormal, 1)
	_, err := tasks.MarkRunning(ctx, task.ID, "started")
	require.NoError(t, err)
	_, err = tasks.UpdateProgress(ctx, task.ID, 60, nil, "")
	require.NoError(t, err)

	got, err := tasks.MarkComplete(ctx, task.ID, true, "synchronization completed")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.CompletedAt)

	// Terminal states are immutable.
	_, err = tasks.MarkComplete(ctx, task.ID, true, "again")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, _, err = tasks.MarkCanceled(ctx, task.ID, "too late")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestMarkCompleteFailureKeepsProgress(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	device := seedDevice(t, db)
	tasks := NewTaskStore(db)

	task := makeTask(t, tasks, device.ID, domain.PriorityNormal, 1)
	_, err := tasks.MarkRunning(ctx, task.ID, "started")
	require.NoError(t, err)
	_, err = tasks.UpdateProgress(ctx, task.ID, 40, nil, "")
	require.NoError(t, err)

	got, err := tasks.MarkComplete(ctx, task.ID, false, "synchronization finished with errors")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, 40, got.Progress)
}

func TestMarkCanceled(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	device := seedDevice(t, db)
	tasks := NewTaskStore(db)

	pending := makeTask(t, tasks, device.ID, domain.PriorityNormal, 1)
	got, wasPending, err := tasks.MarkCanceled(ctx, pending.ID, "canceled by user")
	require.NoError(t, err)
	assert.True(t, wasPending)
	assert.Equal(t, domain.StatusCanceled, got.Status)
	require.NotNil(t, got.CompletedAt)

	running := makeTask(t, tasks, device.ID, domain.PriorityNormal, 1)
	_, err = tasks.MarkRunning(ctx, running.ID, "started")
	require.NoError(t, err)
	got, wasPending, err = tasks.MarkCanceled(ctx, running.ID, "canceled by user")
	require.NoError(t, err)
	assert.False(t, wasPending)
	assert.Equal(t, domain.StatusCanceled, got.Status)
}

func TestRunningSingleFlight(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	device := seedDevice(t, db)
	tasks := NewTaskStore(db)

	got, err := tasks.Running(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	task := makeTask(t, tasks, device.ID, domain.PriorityNormal, 1)
	_, err = tasks.MarkRunning(ctx, task.ID, "started")
	require.NoError(t, err)

	got, err = tasks.Running(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
}

func TestDeviceTasks(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	device := seedDevice(t, db)
	other := seedDevice(t, db)
	tasks := NewTaskStore(db)

	first := makeTask(t, tasks, device.ID, domain.PriorityNormal, 1)
	time.Sleep(time.Millisecond)
	second := makeTask(t, tasks, device.ID, domain.PriorityNormal, 2)
	makeTask(t, tasks, other.ID, domain.PriorityNormal, 3)

	_, err := tasks.MarkRunning(ctx, first.ID, "started")
	require.NoError(t, err)
	_, err = tasks.MarkComplete(ctx, first.ID, true, "done")
	require.NoError(t, err)

	active, err := tasks.DeviceTasks(ctx, device.ID, 10, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	all, err := tasks.DeviceTasks(ctx, device.ID, 10, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID) // newest first
}

func TestCountAndMaxPosition(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	device := seedDevice(t, db)
	tasks := NewTaskStore(db)

	n, err := tasks.CountByStatus(ctx, domain.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	pos, err := tasks.MaxPendingPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	makeTask(t, tasks, device.ID, domain.PriorityNormal, 1)
	makeTask(t, tasks, device.ID, domain.PriorityNormal, 2)

	n, err = tasks.CountByStatus(ctx, domain.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pos, err = tasks.MaxPendingPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestRecentTerminal(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	device := seedDevice(t, db)
	tasks := NewTaskStore(db)

	first := makeTask(t, tasks, device.ID, domain.PriorityNormal, 1)
	_, err := tasks.MarkRunning(ctx, first.ID, "started")
	require.NoError(t, err)
	_, err = tasks.MarkComplete(ctx, first.ID, true, "done")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	second := makeTask(t, tasks, device.ID, domain.PriorityNormal, 1)
	_, _, err = tasks.MarkCanceled(ctx, second.ID, "canceled by user")
	require.NoError(t, err)

	recent, err := tasks.RecentTerminal(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Equal(t, first.ID, recent[1].ID)
}
