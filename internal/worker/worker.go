// Package worker polls the sync queue and drives one task at a time through
// the syncer.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fwsync/internal/queue"
	"fwsync/internal/syncer"
)

// Worker is the single background poller. All task execution happens
// synchronously inside its loop goroutine, which is what serializes the
// system: no second task starts until ProcessTask returns.
//
// Construct one Worker at the composition root and own its lifecycle there;
// Start is idempotent and Stop waits (bounded) for an in-flight task.
type Worker struct {
	queue    *queue.Service
	manager  *syncer.Manager
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(q *queue.Service, m *syncer.Manager, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Worker{queue: q, manager: m, interval: interval}
}

// Start launches the poll loop. A second Start while running is ignored and
// returns false.
func (w *Worker) Start() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		log.Warn().Msg("sync worker already running")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.running = true
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.loop(ctx)

	log.Info().Dur("poll_interval", w.interval).Msg("sync worker started")
	return true
}

// Stop signals the loop to exit and waits up to timeout for it, letting an
// in-flight task finish. Returns false when no worker was running or the
// wait timed out.
func (w *Worker) Stop(timeout time.Duration) bool {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		log.Warn().Msg("sync worker not running")
		return false
	}
	cancel, done := w.cancel, w.done
	w.running = false
	w.mu.Unlock()

	cancel()
	select {
	case <-done:
		log.Info().Msg("sync worker stopped")
		return true
	case <-time.After(timeout):
		log.Warn().Msg("sync worker stop timed out")
		return false
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.poll(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll runs one iteration: pick at most one eligible task and execute it to
// a terminal state. Task execution deliberately uses a fresh context so that
// Stop does not interrupt an in-flight task; the loop ctx only gates polling.
func (w *Worker) poll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Msg("sync worker recovered")
		}
	}()

	next, err := w.queue.NextEligible(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("queue poll failed")
		}
		return
	}
	if next == nil {
		return
	}

	log.Info().Str("task_id", next.ID).Int64("device_id", next.DeviceID).
		Str("name", next.Name).Msg("starting sync task")

	if err := w.manager.ProcessTask(context.Background(), next.ID); err != nil {
		log.Warn().Err(err).Str("task_id", next.ID).Msg("sync task finished with failure")
		return
	}
	log.Info().Str("task_id", next.ID).Msg("sync task completed")
}
