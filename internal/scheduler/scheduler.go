// Package scheduler enqueues periodic full synchronizations.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"fwsync/internal/domain"
	"fwsync/internal/queue"
	"fwsync/internal/store"
)

// AutoSync enqueues a full sync (all kinds, high priority) for every firewall
// device on a cron schedule. Devices that already have an active task are
// skipped so repeated triggers cannot pile the queue up.
type AutoSync struct {
	c       *cron.Cron
	queue   *queue.Service
	devices *store.DeviceStore
	spec    string
}

func NewAutoSync(q *queue.Service, devices *store.DeviceStore, spec string) *AutoSync {
	return &AutoSync{
		c:       cron.New(),
		queue:   q,
		devices: devices,
		spec:    spec,
	}
}

// Start validates the cron expression and begins scheduling.
func (s *AutoSync) Start() error {
	if _, err := s.c.AddFunc(s.spec, s.run); err != nil {
		return fmt.Errorf("invalid auto-sync schedule %q: %w", s.spec, err)
	}
	s.c.Start()
	log.Info().Str("schedule", s.spec).Msg("auto-sync scheduler started")
	return nil
}

// Stop halts scheduling; a trigger already in flight finishes.
func (s *AutoSync) Stop() {
	<-s.c.Stop().Done()
	log.Info().Msg("auto-sync scheduler stopped")
}

func (s *AutoSync) run() {
	ctx := context.Background()

	devices, err := s.devices.ListByCategory(ctx, domain.CategoryFirewall)
	if err != nil {
		log.Error().Err(err).Msg("auto-sync device listing failed")
		return
	}

	for _, d := range devices {
		active, err := s.queue.DeviceTasks(ctx, d.ID, 1, false)
		if err != nil {
			log.Error().Err(err).Int64("device_id", d.ID).Msg("auto-sync active check failed")
			continue
		}
		if len(active) > 0 {
			continue
		}

		t, err := s.queue.CreateTask(ctx, queue.CreateParams{
			DeviceID: d.ID,
			Kinds:    []domain.SyncKind{domain.KindAll},
			Name:     d.Name + " full sync",
			Priority: domain.PriorityHigh,
		})
		if err != nil {
			log.Error().Err(err).Int64("device_id", d.ID).Msg("auto-sync enqueue failed")
			continue
		}
		log.Info().Str("task_id", t.ID).Int64("device_id", d.ID).Msg("auto-sync task enqueued")
	}
}
