package redis

import (
	"context"
	"fmt"

	"github.com/Rrens/bloombuddy/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Client is the shared connection behind the rate limiters, the user cache
// and the Redis local store
type Client struct {
	rdb *redis.Client
}

// NewClient connects and pings once so callers can fall back early
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Addr(), err)
	}

	log.Info().Str("addr", cfg.Addr()).Int("db", cfg.DB).Msg("connected to Redis")
	return &Client{rdb: rdb}, nil
}

// NewClientFrom wraps an existing go-redis client
func NewClientFrom(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping is used by the readiness check
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
