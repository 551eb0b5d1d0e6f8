package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"fwsync/internal/collector"
	"fwsync/internal/config"
	"fwsync/internal/notify"
	"fwsync/internal/ports"
	"fwsync/internal/queue"
	"fwsync/internal/scheduler"
	"fwsync/internal/store"
	"fwsync/internal/syncer"
	"fwsync/internal/worker"
)

func workerCmd() *cobra.Command {
	var pollInterval time.Duration

	var command = &cobra.Command{
		Use:   "worker",
		Short: "Start sync worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			cfg := config.Load()
			if pollInterval > 0 {
				cfg.Worker.PollInterval = pollInterval
			}

			db, err := store.Open(cfg.DB.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			var events ports.EventPublisher = notify.Nop{}
			if cfg.Redis.Addr != "" {
				pub := notify.NewRedisPublisher(cfg.Redis)
				if err := pub.Connect(context.Background()); err != nil {
					return err
				}
				defer pub.Close()
				events = pub
			}

			tasks := store.NewTaskStore(db)
			devices := store.NewDeviceStore(db)
			history := store.NewHistoryStore(db)
			entities := store.NewEntityStore(db)

			q := queue.New(tasks, devices, events)
			manager := syncer.NewManager(q, devices, history, entities, collector.DefaultFactory(),
				syncer.WithUsageDays(cfg.Sync.UsageLogDays),
				syncer.WithKindTimeout(cfg.Sync.KindTimeout))

			w := worker.New(q, manager, cfg.Worker.PollInterval)
			w.Start()

			var auto *scheduler.AutoSync
			if cfg.Sync.AutoSyncCron != "" {
				auto = scheduler.NewAutoSync(q, devices, cfg.Sync.AutoSyncCron)
				if err := auto.Start(); err != nil {
					w.Stop(cfg.Worker.StopTimeout)
					return err
				}
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down")
			if auto != nil {
				auto.Stop()
			}
			w.Stop(cfg.Worker.StopTimeout)
			return nil
		},
	}

	command.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Queue poll interval (overrides env)")
	return command
}
