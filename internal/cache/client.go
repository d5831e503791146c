package cache

import (
	"context"
	"fmt"

	"ms-registration/internal/config"
	"ms-registration/internal/logger"

	"github.com/go-redis/redis/v8"
)

// NewClient connects to Redis and pings it once.
func NewClient(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection error: %w", err)
	}
	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client, nil
}
