// Package cache provides a Redis-backed cache for computed ranking results.
// Keys embed the rule and override versions for the scope, so a stale entry
// is never read: any write to a contributing rule or override changes the
// key itself. The TTL is only a backstop against unbounded key growth.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/solivane/veridex/internal/engine"
	"github.com/solivane/veridex/internal/scope"
)

// ResultCache stores and retrieves computed ranking results.
type ResultCache interface {
	// Get returns the cached result for a key, and whether it was found.
	Get(ctx context.Context, key string) (*engine.Result, bool, error)
	// Set stores a result under a key.
	Set(ctx context.Context, key string, result *engine.Result) error
}

// Key derives the cache key for a scope's ranking result from the version
// timestamps of its contributing rules and overrides.
func Key(scopeKey scope.Key, ruleVersion, overrideVersion time.Time) string {
	return fmt.Sprintf("veridex:ranking:%s:%d:%d",
		scopeKey.String(), ruleVersion.UnixNano(), overrideVersion.UnixNano())
}

// DefaultTTL is the backstop expiry for cached results.
const DefaultTTL = 15 * time.Minute

// RedisCache is a Redis implementation of ResultCache using CBOR encoding
// for the stored results.
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

// RedisCacheConfig configures a RedisCache.
type RedisCacheConfig struct {
	// TTL is the backstop expiry; DefaultTTL when zero.
	TTL time.Duration
	// Logger for decode warnings.
	Logger *slog.Logger
	// Metrics for hit/miss tracking; optional.
	Metrics *Metrics
}

// NewRedisCache creates a Redis-backed result cache.
func NewRedisCache(client *redis.Client, cfg RedisCacheConfig) *RedisCache {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RedisCache{
		client:  client,
		ttl:     cfg.TTL,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Get returns the cached result for a key. Decode failures count as misses:
// the entry is discarded and the result recomputed, never served corrupt.
func (c *RedisCache) Get(ctx context.Context, key string) (*engine.Result, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		if c.metrics != nil {
			c.metrics.IncMiss()
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read ranking cache: %w", err)
	}

	var result engine.Result
	if err := cbor.Unmarshal(data, &result); err != nil {
		c.logger.Warn("discarding undecodable ranking cache entry",
			"key", key, "error", err)
		c.client.Del(ctx, key)
		if c.metrics != nil {
			c.metrics.IncMiss()
		}
		return nil, false, nil
	}
	if c.metrics != nil {
		c.metrics.IncHit()
	}
	return &result, true, nil
}

// Set stores a result under a key with the backstop TTL.
func (c *RedisCache) Set(ctx context.Context, key string, result *engine.Result) error {
	data, err := cbor.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode ranking result: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write ranking cache: %w", err)
	}
	return nil
}

// NoopCache is a ResultCache that stores nothing. Used when no Redis
// address is configured; every request recomputes.
type NoopCache struct{}

// Get always misses.
func (NoopCache) Get(ctx context.Context, key string) (*engine.Result, bool, error) {
	return nil, false, nil
}

// Set discards the result.
func (NoopCache) Set(ctx context.Context, key string, result *engine.Result) error {
	return nil
}
