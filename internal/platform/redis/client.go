// Package redis owns the shared Redis connection used by the revocation
// list. Deployments without Redis simply leave the URL unset and the
// service degrades to store-backed revocation checks.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fides/internal/platform/config"
)

// Client wraps go-redis so callers can health-check the connection
// without importing the driver directly.
type Client struct {
	*redis.Client
}

// New dials Redis from configuration and verifies the connection with a
// ping before handing it out. Returns (nil, nil) when no URL is
// configured so callers can treat Redis as optional.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers pings. Wired into
// the /healthz handler alongside the database check.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}
