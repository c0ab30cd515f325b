package cache

import (
	"time"

	"github.com/raaihank/text-pseudonymizer/internal/registry"
)

// Config contains cache configuration
type Config struct {
	RedisURL     string        `yaml:"redis_url" mapstructure:"redis_url"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	TTL          time.Duration `yaml:"ttl" mapstructure:"ttl"`
	KeyPrefix    string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// cachedSession is the stored form of a registry snapshot
type cachedSession struct {
	Snapshot registry.Snapshot `json:"snapshot"`
	CachedAt time.Time         `json:"cached_at"`
	TTL      int64             `json:"ttl"`
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Keys    int64   `json:"keys"`
}
