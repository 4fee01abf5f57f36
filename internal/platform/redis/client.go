// Package redis wraps the go-redis client backing the status list store.
package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/pilacorp/go-credential-trust/internal/platform/config"
)

type poolMetrics struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	timeouts   prometheus.Counter
	staleConns prometheus.Counter
	totalConns prometheus.Gauge
	idleConns  prometheus.Gauge
}

func newPoolMetrics(reg prometheus.Registerer) *poolMetrics {
	factory := promauto.With(reg)
	return &poolMetrics{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Name: "credential_trust_redis_pool_hits_total",
			Help: "Number of times a connection was found in the pool",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Name: "credential_trust_redis_pool_misses_total",
			Help: "Number of times a connection was not found in the pool",
		}),
		timeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "credential_trust_redis_pool_timeouts_total",
			Help: "Number of times a connection was not obtained due to timeout",
		}),
		staleConns: factory.NewCounter(prometheus.CounterOpts{
			Name: "credential_trust_redis_pool_stale_conns_total",
			Help: "Number of stale connections removed from the pool",
		}),
		totalConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "credential_trust_redis_pool_total_conns",
			Help: "Number of total connections in the pool",
		}),
		idleConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "credential_trust_redis_pool_idle_conns",
			Help: "Number of idle connections in the pool",
		}),
	}
}

// Client wraps the go-redis client with health checking and pool metrics.
type Client struct {
	*redis.Client
	metrics   *poolMetrics
	lastStats *redis.PoolStats
}

// New connects to the Redis instance at cfg.URL and registers the pool
// metrics with reg (which may be nil). It returns nil, nil when no URL is
// configured.
func New(ctx context.Context, cfg config.RedisConfig, reg prometheus.Registerer) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
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

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	c := &Client{Client: client}
	if reg != nil {
		c.metrics = newPoolMetrics(reg)
	}
	return c, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RecordPoolStats publishes the current pool statistics. Counters advance by
// the delta since the previous call.
func (c *Client) RecordPoolStats() {
	if c.metrics == nil {
		return
	}
	stats := c.PoolStats()

	c.metrics.totalConns.Set(float64(stats.TotalConns))
	c.metrics.idleConns.Set(float64(stats.IdleConns))

	var last redis.PoolStats
	if c.lastStats != nil {
		last = *c.lastStats
	}
	addDelta(c.metrics.hits, stats.Hits, last.Hits)
	addDelta(c.metrics.misses, stats.Misses, last.Misses)
	addDelta(c.metrics.timeouts, stats.Timeouts, last.Timeouts)
	addDelta(c.metrics.staleConns, stats.StaleConns, last.StaleConns)

	c.lastStats = stats
}

func addDelta(counter prometheus.Counter, current, previous uint32) {
	if current > previous {
		counter.Add(float64(current - previous))
	}
}
