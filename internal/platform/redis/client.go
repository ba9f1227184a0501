// Package redis connects the verification token store to Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"onboarding/internal/platform/config"
)

// ErrNotConfigured is returned by Health on a nil Client.
var ErrNotConfigured = errors.New("redis not configured")

const defaultHealthTimeout = 2 * time.Second

// Client is a go-redis client that owns its connection pool. A nil *Client
// means Redis is not configured; Health and Close accept it.
type Client struct {
	*redis.Client
	healthTimeout time.Duration
	closeOnce     sync.Once
	closeErr      error
}

// New connects using cfg and pings once. It returns (nil, nil) when no URL is
// configured so callers can fall back to another token store.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	applyOverrides(opts, cfg)

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	return &Client{Client: rdb, healthTimeout: defaultHealthTimeout}, nil
}

// applyOverrides keeps the URL's values for any setting left at zero.
func applyOverrides(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
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
}

// Health pings Redis, bounded by a short timeout when ctx has no deadline.
func (c *Client) Health(ctx context.Context) error {
	if c == nil {
		return ErrNotConfigured
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.healthTimeout)
		defer cancel()
	}
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health: %w", err)
	}
	return nil
}

// Close releases the pool. Repeated calls return the first result.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closeErr = c.Client.Close()
	})
	return c.closeErr
}
