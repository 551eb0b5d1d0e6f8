// Package syncer executes one synchronization task end-to-end: it walks the
// requested kinds in canonical order, pulls data through the device's
// collector, persists it and tracks weighted progress.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"fwsync/internal/domain"
	"fwsync/internal/metrics"
	"fwsync/internal/ports"
	"fwsync/internal/queue"
	"fwsync/internal/store"
)

// ErrCanceled is returned by ProcessTask when the task was canceled
// externally while it was running.
var ErrCanceled = errors.New("task canceled")

// Manager drives task execution. One Manager call is in flight at a time;
// the worker loop provides that serialization.
type Manager struct {
	queue      *queue.Service
	devices    *store.DeviceStore
	history    *store.HistoryStore
	entities   *store.EntityStore
	collectors ports.CollectorFactory

	// usageDays is the lookback window for the usage_logs kind.
	usageDays int
	// kindTimeout bounds one kind's collector call; zero disables the bound.
	kindTimeout time.Duration
}

type Option func(*Manager)

// WithUsageDays overrides the usage-log lookback window (default 90 days).
func WithUsageDays(days int) Option {
	return func(m *Manager) {
		if days > 0 {
			m.usageDays = days
		}
	}
}

// WithKindTimeout bounds each kind's execution. The engine historically ran
// unbounded; a stuck collector call blocks the whole queue, so deployments
// can opt in to a per-kind deadline.
func WithKindTimeout(d time.Duration) Option {
	return func(m *Manager) { m.kindTimeout = d }
}

func NewManager(q *queue.Service, devices *store.DeviceStore, history *store.HistoryStore,
	entities *store.EntityStore, collectors ports.CollectorFactory, opts ...Option) *Manager {
	m := &Manager{
		queue:      q,
		devices:    devices,
		history:    history,
		entities:   entities,
		collectors: collectors,
		usageDays:  90,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ProcessTask runs one task to a terminal state. A per-kind failure does not
// abort the remaining kinds; it flips the overall outcome to failed and is
// surfaced through the task's history. The returned error is nil only when
// every requested kind succeeded.
//
// Cancellation is cooperative: the task status is re-read before each kind,
// and a cancel observed there stops the loop. An in-flight collector call is
// never interrupted.
func (m *Manager) ProcessTask(ctx context.Context, taskID string) error {
	task, err := m.queue.Start(ctx, taskID)
	if err != nil {
		return fmt.Errorf("start task %s: %w", taskID, err)
	}

	device, err := m.devices.Get(ctx, task.DeviceID)
	if err != nil {
		msg := fmt.Sprintf("device %d does not exist", task.DeviceID)
		m.complete(ctx, taskID, false, msg)
		return errors.New(msg)
	}

	kinds := domain.SortKinds(task.Kinds)
	totalWeight := 0
	for _, k := range kinds {
		totalWeight += k.Weight()
	}
	if totalWeight == 0 {
		m.complete(ctx, taskID, false, "no valid sync kinds requested")
		return errors.New("no valid sync kinds requested")
	}

	batch := domain.BatchRef{ID: task.BatchID, IsBatch: task.IsBatch}
	if batch.ID == "" {
		batch.ID = taskID
	}

	allSuccess := true
	currentWeight := 0

	for _, kind := range kinds {
		// Cancellation check at the kind boundary.
		cur, err := m.queue.Task(ctx, taskID)
		if err != nil {
			m.complete(ctx, taskID, false, err.Error())
			return err
		}
		if cur.Status == domain.StatusCanceled {
			log.Ctx(ctx).Info().Str("task_id", taskID).Msg("task canceled, stopping")
			return ErrCanceled
		}

		kind := kind
		progressStart := (currentWeight * 100) / totalWeight
		if _, err := m.queue.UpdateProgress(ctx, taskID, progressStart, &kind,
			fmt.Sprintf("synchronizing %s...", kind.Label())); err != nil {
			// A cancel can land between the status check and this write.
			if errors.Is(err, domain.ErrInvalidState) {
				return ErrCanceled
			}
			m.complete(ctx, taskID, false, err.Error())
			return err
		}

		message, kindErr := m.runKind(ctx, *device, kind, batch)
		if kindErr != nil {
			allSuccess = false
			message = fmt.Sprintf("%s sync failed: %v", kind.Label(), kindErr)
			metrics.KindFailed(string(kind))
			log.Ctx(ctx).Warn().Err(kindErr).
				Str("task_id", taskID).Int64("device_id", device.ID).Str("kind", string(kind)).
				Msg("sync kind failed")
		}
		m.record(ctx, device.ID, kind, kindErr, message, batch)

		currentWeight += kind.Weight()
		progressEnd := (currentWeight * 100) / totalWeight
		if _, err := m.queue.UpdateProgress(ctx, taskID, progressEnd, &kind, message); err != nil {
			if errors.Is(err, domain.ErrInvalidState) {
				return ErrCanceled
			}
			m.complete(ctx, taskID, false, err.Error())
			return err
		}
	}

	if allSuccess {
		m.complete(ctx, taskID, true, "all sync kinds completed")
		return nil
	}
	m.complete(ctx, taskID, false, "one or more sync kinds failed")
	return errors.New("one or more sync kinds failed")
}

// runKind executes one kind's handler inside its own failure domain. The
// returned error is any collector or persistence failure for that kind;
// partial writes were already rolled back by the store.
func (m *Manager) runKind(ctx context.Context, device domain.Device, kind domain.SyncKind, batch domain.BatchRef) (string, error) {
	if m.kindTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.kindTimeout)
		defer cancel()
	}

	collector, err := m.collectors.Collector(device)
	if err != nil {
		return "", err
	}

	switch kind {
	case domain.KindSystemInfo:
		return m.syncSystemInfo(ctx, device, collector)
	case domain.KindPolicies:
		return m.syncPolicies(ctx, device, collector)
	case domain.KindNetworkObjects:
		return m.syncNetworkObjects(ctx, device, collector)
	case domain.KindNetworkGroups:
		return m.syncNetworkGroups(ctx, device, collector)
	case domain.KindServiceObjects:
		return m.syncServiceObjects(ctx, device, collector)
	case domain.KindServiceGroups:
		return m.syncServiceGroups(ctx, device, collector)
	case domain.KindUsageLogs:
		return m.syncUsageLogs(ctx, device, collector)
	default:
		return "", fmt.Errorf("unknown sync kind %q", kind)
	}
}

// record writes the per-kind history entry at the moment the attempt
// concludes. History is the durable audit trail; a write failure is logged
// but does not change the kind's outcome.
func (m *Manager) record(ctx context.Context, deviceID int64, kind domain.SyncKind, kindErr error, message string, batch domain.BatchRef) {
	result := domain.ResultSuccess
	if kindErr != nil {
		result = domain.ResultFailed
		message = kindErr.Error()
	}
	h := &domain.HistoryEntry{
		DeviceID: deviceID,
		Kind:     kind,
		Result:   result,
		Message:  message,
		IsBatch:  batch.IsBatch,
		BatchID:  batch.ID,
	}
	if err := m.history.Create(ctx, h); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("device_id", deviceID).Str("kind", string(kind)).
			Msg("history write failed")
	}
}

func (m *Manager) complete(ctx context.Context, taskID string, success bool, message string) {
	if _, err := m.queue.Complete(ctx, taskID, success, message); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("task_id", taskID).Msg("complete task failed")
	}
}
