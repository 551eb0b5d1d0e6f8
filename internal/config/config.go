package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DB     DB
	Worker Worker
	Sync   Sync
	Redis  Redis
}

type DB struct {
	Path string `env:"FWSYNC_DB_PATH" envDefault:"data/fwsync.db"`
}

type Worker struct {
	PollInterval time.Duration `env:"FWSYNC_POLL_INTERVAL" envDefault:"5s"`
	StopTimeout  time.Duration `env:"FWSYNC_STOP_TIMEOUT" envDefault:"30s"`
}

type Sync struct {
	// UsageLogDays is the lookback window for usage-log collection.
	UsageLogDays int `env:"FWSYNC_USAGE_LOG_DAYS" envDefault:"90"`
	// KindTimeout bounds one sync kind; 0 keeps the historical unbounded run.
	KindTimeout time.Duration `env:"FWSYNC_KIND_TIMEOUT" envDefault:"0"`
	// AutoSyncCron, when set, enqueues a full sync for every firewall device
	// on this cron schedule.
	AutoSyncCron string `env:"FWSYNC_AUTO_SYNC_CRON"`
}

type Redis struct {
	// Addr enables the event feed when set.
	Addr     string `env:"FWSYNC_REDIS_ADDR"`
	Password string `env:"FWSYNC_REDIS_PASSWORD"`
	DB       int    `env:"FWSYNC_REDIS_DB"`
	Channel  string `env:"FWSYNC_EVENT_CHANNEL" envDefault:"fwsync:events"`
}

func Load() *Config {
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal(err)
	}

	return &c
}
