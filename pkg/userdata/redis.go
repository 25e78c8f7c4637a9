package userdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RedisClient defines the interface for Redis operations.
// This interface is compatible with github.com/redis/go-redis/v9.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) RedisStatusCmd
	Get(ctx context.Context, key string) RedisStringCmd
	Del(ctx context.Context, keys ...string) RedisIntCmd
	Close() error
}

// RedisStatusCmd represents a Redis status command result.
type RedisStatusCmd interface {
	Err() error
}

// RedisStringCmd represents a Redis string command result.
type RedisStringCmd interface {
	Bytes() ([]byte, error)
	Err() error
}

// RedisIntCmd represents a Redis int command result.
type RedisIntCmd interface {
	Err() error
}

// ErrRedisNil is returned when a key doesn't exist in Redis.
// This should match redis.Nil from go-redis.
var ErrRedisNil = errors.New("redis: nil")

// RedisAdapter is a Redis-backed user-data adapter.
// Suitable as a low-latency account backend shared across servers.
// Records are stored without expiry by default; an optional TTL turns the
// adapter into a write-through cache in front of a durable backend.
type RedisAdapter struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	closed bool
}

// RedisAdapterOption configures RedisAdapter behavior.
type RedisAdapterOption func(*redisAdapterConfig)

type redisAdapterConfig struct {
	prefix string
	ttl    time.Duration
}

// WithRedisPrefix sets the key prefix for user-data keys.
// Default: "reeldeck:userdata:".
func WithRedisPrefix(prefix string) RedisAdapterOption {
	return func(c *redisAdapterConfig) {
		c.prefix = prefix
	}
}

// WithRedisTTL sets an expiry on stored records. Zero means no expiry.
func WithRedisTTL(ttl time.Duration) RedisAdapterOption {
	return func(c *redisAdapterConfig) {
		c.ttl = ttl
	}
}

// NewRedisAdapter creates a new Redis-backed user-data adapter.
func NewRedisAdapter(client RedisClient, opts ...RedisAdapterOption) *RedisAdapter {
	cfg := &redisAdapterConfig{
		prefix: "reeldeck:userdata:",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisAdapter{
		client: client,
		prefix: cfg.prefix,
		ttl:    cfg.ttl,
	}
}

// key returns the Redis key for an identity.
func (r *RedisAdapter) key(identityID string) string {
	return r.prefix + identityID
}

// Load retrieves the record for an identity, or (nil, nil) if absent.
func (r *RedisAdapter) Load(ctx context.Context, identityID string) (*Record, error) {
	if r.closed {
		return nil, ErrAdapterClosed{}
	}

	doc, err := r.client.Get(ctx, r.key(identityID)).Bytes()
	if err != nil {
		// Check for nil (key doesn't exist)
		if err.Error() == ErrRedisNil.Error() || err.Error() == "redis: nil" {
			return nil, nil
		}
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode user-data document: %w", err)
	}
	return &rec, nil
}

// Save stores the full record document for an identity.
func (r *RedisAdapter) Save(ctx context.Context, identityID string, rec *Record) error {
	if r.closed {
		return ErrAdapterClosed{}
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode user-data document: %w", err)
	}

	return r.client.Set(ctx, r.key(identityID), doc, r.ttl).Err()
}

// Delete removes the record for an identity.
func (r *RedisAdapter) Delete(ctx context.Context, identityID string) error {
	if r.closed {
		return ErrAdapterClosed{}
	}

	return r.client.Del(ctx, r.key(identityID)).Err()
}

// Close marks the adapter as closed.
// Note: This does not close the underlying Redis client,
// as it may be shared with other components.
func (r *RedisAdapter) Close() error {
	r.closed = true
	return nil
}

// Prefix returns the current key prefix.
// This is for testing/debugging purposes.
func (r *RedisAdapter) Prefix() string {
	return r.prefix
}
