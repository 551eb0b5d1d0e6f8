// Package notify publishes task lifecycle events for external observers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"fwsync/internal/config"
	"fwsync/internal/ports"
)

// RedisPublisher fans events out on a Redis channel. Dashboards subscribe
// instead of polling the task status endpoint.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(cfg config.Redis) *RedisPublisher {
	log.Info().Msgf("connecting to redis at %s", cfg.Addr)
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisPublisher{rdb: c, channel: cfg.Channel}
}

// Connect verifies the Redis connection.
func (p *RedisPublisher) Connect(ctx context.Context) error {
	if err := p.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	log.Ctx(ctx).Info().Msg("connected to redis")
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

func (p *RedisPublisher) Publish(ctx context.Context, e ports.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, b).Err()
}

var _ ports.EventPublisher = (*RedisPublisher)(nil)
