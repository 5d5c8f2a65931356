// Package cache stores JSON-encoded dashboard responses in Redis.
// A Cache without a client is valid and behaves as an always-empty cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"agri-dashboard/pkg/logging"
	"agri-dashboard/pkg/metrics"
)

const keyPrefix = "agri-dashboard:"

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	// ConnectTimeout bounds the startup ping retries
	ConnectTimeout time.Duration
}

// Cache is a read-through response cache
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// Disabled returns a cache that never stores anything
func Disabled(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Cache {
	return &Cache{logger: logger, metrics: metricsCollector}
}

// New connects to Redis. When the server cannot be reached within
// ConnectTimeout it returns a disabled cache together with the error, so the
// caller can decide whether to run without caching.
func New(opts Options, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if opts.ConnectTimeout > 0 {
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = opts.ConnectTimeout
		policy = bo
	}

	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	}

	if err := backoff.Retry(ping, policy); err != nil {
		client.Close()
		return Disabled(logger, metricsCollector), fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info(context.Background(), "[CACHE_INIT] Redis connection established", logging.Fields{
		"addr": opts.Addr,
		"db":   opts.DB,
		"ttl":  opts.TTL.String(),
	})

	return &Cache{
		client:  client,
		ttl:     opts.TTL,
		logger:  logger,
		metrics: metricsCollector,
	}, nil
}

// Available reports whether a Redis client is attached
func (c *Cache) Available() bool {
	return c.client != nil
}

// Key builds a namespaced cache key from its parts
func Key(parts ...string) string {
	return keyPrefix + strings.Join(parts, ":")
}

// Get decodes the cached value for key into dest and reports whether it was
// found. A disabled cache always misses.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c.client == nil {
		return false, nil
	}

	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.RecordCacheLookup("miss")
		return false, nil
	}
	if err != nil {
		c.metrics.RecordCacheLookup("error")
		return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		c.metrics.RecordCacheLookup("error")
		return false, fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}

	c.metrics.RecordCacheLookup("hit")
	return true, nil
}

// Set stores value under key with the configured TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}

	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Close releases the Redis connection
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
