// Package store persists match state in Redis and carries the per-match
// event channels. Redis is the single source of truth; the process keeps no
// authoritative game state in memory.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// Config controls the Redis connection pool.
type Config struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns production defaults sized for thousands of concurrent
// players.
func DefaultConfig(url string) Config {
	return Config{
		URL:          url,
		PoolSize:     30,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Store wraps the Redis client shared by all repositories.
type Store struct {
	rdb    *redis.Client
	logger *log.Logger
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("connected to redis", "addr", opts.Addr, "pool_size", opts.PoolSize)
	return &Store{rdb: rdb, logger: logger}, nil
}

// NewWithClient wraps an existing client, for tests.
func NewWithClient(rdb *redis.Client, logger *log.Logger) *Store {
	return &Store{rdb: rdb, logger: logger}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}
