package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisCache is a Cache shared between processes. Entries are stored as JSON
// and expire in Redis after the retention period.
type RedisCache[V any] struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
	logger    *logrus.Entry
}

// NewRedisCache creates a Redis backed cache. Keys are namespaced with prefix.
func NewRedisCache[V any](client *redis.Client, prefix string, retention time.Duration, logger *logrus.Logger) *RedisCache[V] {
	return &RedisCache[V]{
		client:    client,
		prefix:    prefix,
		retention: retention,
		logger:    logger.WithField("component", "redis_cache"),
	}
}

// NewRedisClient parses a redis:// URL and returns a connected client.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache[V]) key(key string) string {
	return c.prefix + key
}

// Get returns the stored entry for key. Redis errors are logged and reported as a miss.
func (c *RedisCache[V]) Get(ctx context.Context, key string) (Entry[V], bool) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry[V]{}, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		return Entry[V]{}, false
	}

	var entry Entry[V]
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Discarding undecodable cache entry")
		return Entry[V]{}, false
	}
	return entry, true
}

// Set stores entry under key. Failures are logged; the cache is best effort.
func (c *RedisCache[V]) Set(ctx context.Context, key string, entry Entry[V]) {
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache encode failed")
		return
	}
	if err := c.client.Set(ctx, c.key(key), data, c.retention).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}
