package cache

import (
	"time"

	"github.com/lexredact/lexredact/internal/pii"
)

// CachedDetection is the serialized form of one recognizer run.
type CachedDetection struct {
	Language string       `json:"language"`
	Entities []pii.Entity `json:"entities"`
	CachedAt time.Time    `json:"cached_at"`
	TTL      int64        `json:"ttl"`
}

// Stats represents cache performance statistics.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	TotalKeys   int64   `json:"total_keys"`
	MemoryUsage int64   `json:"memory_usage_bytes"`
}

// Config contains cache configuration.
type Config struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// DefaultConfig returns the cache defaults used when no config file sets them.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		RedisURL:       "redis://localhost:6379/0",
		MaxConnections: 10,
		MinIdleConns:   2,
		DefaultTTL:     time.Hour,
		KeyPrefix:      "lexredact:ner:",
	}
}
