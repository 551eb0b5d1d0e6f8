package cmd

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"fwsync/internal/api"
	"fwsync/internal/config"
	"fwsync/internal/notify"
	"fwsync/internal/ports"
	"fwsync/internal/queue"
	"fwsync/internal/store"
)

func apiCmd() *cobra.Command {
	var port int
	var command = &cobra.Command{
		Use:   "api",
		Short: "Start API server",
		Run: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			cfg := config.Load()

			db, err := store.Open(cfg.DB.Path)
			if err != nil {
				log.Fatal().Err(err).Msg("open database failed")
			}
			defer db.Close()

			var events ports.EventPublisher = notify.Nop{}
			if cfg.Redis.Addr != "" {
				pub := notify.NewRedisPublisher(cfg.Redis)
				if err := pub.Connect(context.Background()); err != nil {
					log.Fatal().Err(err).Msg("redis connect failed")
				}
				defer pub.Close()
				events = pub
			}

			tasks := store.NewTaskStore(db)
			devices := store.NewDeviceStore(db)
			history := store.NewHistoryStore(db)
			q := queue.New(tasks, devices, events)

			server := api.NewServer(q, devices, history)
			server.Run(port)
		},
	}

	command.Flags().IntVarP(&port, "port", "p", 8080, "Port to run the server on")
	return command
}
