package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"luxemap/estates/internal/logging"
)

// ConnectRedis initializes and returns a Redis client instance.
// An empty addr means Redis is not configured; nil is returned without error.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		logging.Logger.Info("REDIS_ADDR not set, running without Redis")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logging.Logger.Infof("Connected to Redis at %s (db %d)", addr, db)
	return rdb, nil
}

// DisconnectRedis closes the Redis client connection.
func DisconnectRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	logging.Logger.Info("Redis connection closed.")
	return nil
}
