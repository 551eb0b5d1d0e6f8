// Package queue admits, orders and transitions synchronization tasks.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"fwsync/internal/domain"
	"fwsync/internal/metrics"
	"fwsync/internal/ports"
	"fwsync/internal/store"
)

// Service is the queue's public surface. At most one task is running across
// the whole system at any instant; Service enforces that by refusing to hand
// out a next task while one is running.
type Service struct {
	tasks   *store.TaskStore
	devices *store.DeviceStore
	events  ports.EventPublisher
}

func New(tasks *store.TaskStore, devices *store.DeviceStore, events ports.EventPublisher) *Service {
	return &Service{tasks: tasks, devices: devices, events: events}
}

// CreateParams describes one enqueue request.
type CreateParams struct {
	DeviceID int64
	Kinds    []domain.SyncKind
	Name     string
	Priority domain.Priority
	BatchID  string
}

// CreateTask validates the request, appends a pending task at the tail of the
// queue and reorders it by priority. The KindAll sentinel expands to every
// kind. Returns the created task with its final queue position.
func (s *Service) CreateTask(ctx context.Context, p CreateParams) (*domain.Task, error) {
	device, err := s.devices.Get(ctx, p.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("device %d does not exist: %w", p.DeviceID, domain.ErrInvalidRequest)
	}
	if len(p.Kinds) == 0 {
		return nil, fmt.Errorf("no sync kinds requested: %w", domain.ErrInvalidRequest)
	}

	kinds := p.Kinds
	for _, k := range p.Kinds {
		if k == domain.KindAll {
			kinds = domain.AllKinds()
			break
		}
	}
	for _, k := range kinds {
		if _, err := domain.ParseKind(string(k)); err != nil {
			return nil, fmt.Errorf("%s: %w", err, domain.ErrInvalidRequest)
		}
	}

	name := p.Name
	if name == "" {
		name = device.Name + " sync"
	}
	priority := p.Priority
	if priority == 0 {
		priority = domain.PriorityNormal
	}

	isBatch := len(kinds) > 1
	batchID := p.BatchID
	if isBatch && batchID == "" {
		batchID = uuid.NewString()
	}

	maxPos, err := s.tasks.MaxPendingPosition(ctx)
	if err != nil {
		return nil, err
	}

	t := &domain.Task{
		ID:            uuid.NewString(),
		DeviceID:      device.ID,
		Name:          name,
		Kinds:         kinds,
		Status:        domain.StatusPending,
		Priority:      priority,
		QueuePosition: maxPos + 1,
		BatchID:       batchID,
		IsBatch:       isBatch,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, err
	}

	// Admission appends at the tail; the reorder slots the task by priority.
	if err := s.tasks.ReorderPending(ctx); err != nil {
		return nil, err
	}

	created, err := s.tasks.Get(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "queued", created)
	s.updateDepth(ctx)
	return created, nil
}

// Task returns a task by id.
func (s *Service) Task(ctx context.Context, id string) (*domain.Task, error) {
	return s.tasks.Get(ctx, id)
}

// NextEligible returns the next task to run, or nil while a task is running
// (single-flight) or the queue is empty. Read-only.
func (s *Service) NextEligible(ctx context.Context) (*domain.Task, error) {
	running, err := s.tasks.Running(ctx)
	if err != nil {
		return nil, err
	}
	if running != nil {
		return nil, nil
	}
	return s.tasks.NextPending(ctx)
}

// Start transitions a pending task to running.
func (s *Service) Start(ctx context.Context, id string) (*domain.Task, error) {
	t, err := s.tasks.MarkRunning(ctx, id, "synchronization started")
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "started", t)
	s.updateDepth(ctx)
	return t, nil
}

// UpdateProgress records progress on a running task, clamped into [0,100].
func (s *Service) UpdateProgress(ctx context.Context, id string, progress int, kind *domain.SyncKind, message string) (*domain.Task, error) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	t, err := s.tasks.UpdateProgress(ctx, id, progress, kind, message)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "progress", t)
	return t, nil
}

// Complete finishes a task. With an empty message a default is recorded.
func (s *Service) Complete(ctx context.Context, id string, success bool, message string) (*domain.Task, error) {
	if message == "" {
		if success {
			message = "synchronization completed"
		} else {
			message = "synchronization finished with errors"
		}
	}
	t, err := s.tasks.MarkComplete(ctx, id, success, message)
	if err != nil {
		return nil, err
	}
	event := "completed"
	if !success {
		event = "failed"
	}
	s.publish(ctx, event, t)
	metrics.TaskFinished(string(t.Status), t.Elapsed())
	return t, nil
}

// Cancel cancels a pending or running task. Cancellation of a running task is
// cooperative: the orchestrator observes the status change at the next kind
// boundary.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Task, error) {
	t, wasPending, err := s.tasks.MarkCanceled(ctx, id, "canceled by user")
	if err != nil {
		return nil, err
	}
	if wasPending {
		if err := s.tasks.ReorderPending(ctx); err != nil {
			return nil, err
		}
	}
	s.publish(ctx, "canceled", t)
	s.updateDepth(ctx)
	metrics.TaskFinished(string(domain.StatusCanceled), t.Elapsed())
	return t, nil
}

// DeviceTasks lists a device's tasks, most recent first.
func (s *Service) DeviceTasks(ctx context.Context, deviceID int64, limit int, includeCompleted bool) ([]*domain.Task, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.tasks.DeviceTasks(ctx, deviceID, limit, includeCompleted)
}

// Status is a point-in-time snapshot of the queue for observability.
type Status struct {
	RunningCount    int            `json:"running_count"`
	PendingCount    int            `json:"pending_count"`
	CurrentTask     *domain.Task   `json:"current_task,omitempty"`
	RecentCompleted []*domain.Task `json:"recent_completed"`
}

// QueueStatus reports counts, the running task and the latest finished tasks.
func (s *Service) QueueStatus(ctx context.Context) (*Status, error) {
	running, err := s.tasks.Running(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.tasks.CountByStatus(ctx, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	recent, err := s.tasks.RecentTerminal(ctx, 5)
	if err != nil {
		return nil, err
	}
	st := &Status{PendingCount: pending, CurrentTask: running, RecentCompleted: recent}
	if running != nil {
		st.RunningCount = 1
	}
	return st, nil
}

// Reorder recomputes dense queue positions for all pending tasks.
func (s *Service) Reorder(ctx context.Context) error {
	return s.tasks.ReorderPending(ctx)
}

func (s *Service) publish(ctx context.Context, eventType string, t *domain.Task) {
	if s.events == nil {
		return
	}
	e := ports.Event{
		Type:     eventType,
		TaskID:   t.ID,
		DeviceID: t.DeviceID,
		Status:   string(t.Status),
		Progress: t.Progress,
		Message:  t.Message,
		At:       time.Now(),
	}
	if t.CurrentKind != nil {
		e.Kind = string(*t.CurrentKind)
	}
	if err := s.events.Publish(ctx, e); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("task_id", t.ID).Msg("event publish failed")
	}
}

func (s *Service) updateDepth(ctx context.Context) {
	n, err := s.tasks.CountByStatus(ctx, domain.StatusPending)
	if err != nil {
		return
	}
	metrics.SetPendingDepth(n)
}
