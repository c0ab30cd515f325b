package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/text-pseudonymizer/internal/logger"
	"github.com/raaihank/text-pseudonymizer/internal/registry"
)

// SessionCache keeps registry snapshots in Redis so a session survives
// restarts and can be shared between server replicas
type SessionCache struct {
	client *redis.Client
	config *Config
	logger *logger.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewSessionCache connects to Redis
func NewSessionCache(config *Config, log *logger.Logger) (*SessionCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pool
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns

	cache := &SessionCache{
		client: redis.NewClient(opts),
		config: config,
		logger: log.WithComponent("cache"),
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.client.Ping(ctx).Err(); err != nil {
		cache.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache.logger.Info("Session cache initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("pool_size", opts.PoolSize),
		zap.Duration("ttl", config.TTL))

	return cache, nil
}

func (c *SessionCache) key(sessionID string) string {
	return c.config.KeyPrefix + "session:" + sessionID
}

// SaveSnapshot stores the registry state of a session, replacing any
// previous one and resetting its TTL
func (c *SessionCache) SaveSnapshot(ctx context.Context, sessionID string, snapshot registry.Snapshot) error {
	data, err := encodeSession(snapshot, c.config.TTL, time.Now())
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, c.key(sessionID), data, c.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	c.logger.Debug("Session cached",
		zap.String("session_id", sessionID),
		zap.Int("correspondences", len(snapshot.Correspondences)))

	return nil
}

// LoadSnapshot returns the stored registry state of a session. found is false
// when the session is unknown or expired.
func (c *SessionCache) LoadSnapshot(ctx context.Context, sessionID string) (snapshot registry.Snapshot, found bool, err error) {
	data, err := c.client.Get(ctx, c.key(sessionID)).Bytes()
	if err == redis.Nil {
		c.misses.Add(1)
		return registry.Snapshot{}, false, nil
	}
	if err != nil {
		return registry.Snapshot{}, false, fmt.Errorf("failed to load session: %w", err)
	}

	snapshot, err = decodeSession(data)
	if err != nil {
		// Delete corrupted cache entry
		c.logger.Warn("Dropping corrupted session entry", zap.String("session_id", sessionID), zap.Error(err))
		c.client.Del(ctx, c.key(sessionID))
		c.misses.Add(1)
		return registry.Snapshot{}, false, nil
	}

	c.hits.Add(1)
	return snapshot, true, nil
}

// Delete removes a session
func (c *SessionCache) Delete(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, c.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// GetStats returns hit/miss counters and the number of cached sessions
func (c *SessionCache) GetStats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.config.KeyPrefix+"session:*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan sessions: %w", err)
		}
		stats.Keys += int64(len(keys))
		if next == 0 {
			break
		}
		cursor = next
	}

	return stats, nil
}

// Close closes the Redis connection
func (c *SessionCache) Close() error {
	return c.client.Close()
}

func encodeSession(snapshot registry.Snapshot, ttl time.Duration, now time.Time) ([]byte, error) {
	data, err := json.Marshal(cachedSession{
		Snapshot: snapshot,
		CachedAt: now,
		TTL:      int64(ttl.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return data, nil
}

func decodeSession(data []byte) (registry.Snapshot, error) {
	var cached cachedSession
	if err := json.Unmarshal(data, &cached); err != nil {
		return registry.Snapshot{}, err
	}
	if cached.Snapshot.Correspondences == nil {
		cached.Snapshot.Correspondences = map[string]string{}
	}
	return cached.Snapshot, nil
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return url
	}
	return url[:scheme+3] + "***" + url[at:]
}
