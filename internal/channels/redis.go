package channels

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// RedisKeyPrefix is prepended to the team id
	RedisKeyPrefix = "alertdesk:channels:"
	// RedisTTL bounds how stale a shared channel list can get
	RedisTTL = 30 * time.Minute
)

// RedisCache shares channel lists between alertdesk instances
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects to Redis at redisURL (redis:// or rediss://)
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	if opts.TLSConfig == nil && strings.HasPrefix(redisURL, "rediss://") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisCache{rdb: rdb, ttl: RedisTTL}, nil
}

// Load returns the cached list for a team
func (c *RedisCache) Load(ctx context.Context, teamID string) ([]Channel, bool, error) {
	raw, err := c.rdb.Get(ctx, RedisKeyPrefix+teamID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var channels []Channel
	if err := json.Unmarshal(raw, &channels); err != nil {
		return nil, false, fmt.Errorf("decode cached channels: %w", err)
	}
	return channels, true, nil
}

// Store replaces the cached list for a team
func (c *RedisCache) Store(ctx context.Context, teamID string, channels []Channel) error {
	raw, err := json.Marshal(channels)
	if err != nil {
		return fmt.Errorf("encode channels: %w", err)
	}
	if err := c.rdb.Set(ctx, RedisKeyPrefix+teamID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
