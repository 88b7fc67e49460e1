package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/equine-appointment-scheduling/internal/config"
)

// Options derives the go-redis options for the booking lock store. Lock calls
// are single round trips, so timeouts stay well under the lock TTL.
func Options(cfg config.Config) *redis.Options {
	opTimeout := time.Second
	if cfg.LockTTL > 0 && cfg.LockTTL/4 < opTimeout {
		opTimeout = cfg.LockTTL / 4
	}

	return &redis.Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		ClientName:   "equine-scheduling-" + cfg.Env,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
		MaxRetries:   1,
		PoolSize:     10,
		MinIdleConns: 1,
	}
}

// NewRedisClient connects to the lock store and checks it answers PING.
func NewRedisClient(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(Options(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}

	return rdb, nil
}
