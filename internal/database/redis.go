package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"collab-service/internal/config"
)

// NewRedis connects to redis. Redis is optional here: it backs the unread
// count cache and best-effort event publication, and every caller tolerates a
// nil client, so a connection failure returns nil rather than an error.
func NewRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil
	}

	return client
}
