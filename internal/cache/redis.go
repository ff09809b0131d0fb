package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/lexredact/lexredact/internal/pii"
)

// DetectionCache handles Redis-based caching for recognizer results, so
// that re-anonymizing the same document does not re-run model inference.
type DetectionCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	stats  *cacheStats
}

// cacheStats tracks cache performance metrics. Counters are atomic because
// batch anonymization drives Get from multiple goroutines.
type cacheStats struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// NewDetectionCache connects to Redis and verifies the connection before
// returning.
func NewDetectionCache(config *Config, logger *zap.Logger) (*DetectionCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	dc := &DetectionCache{
		client: redis.NewClient(opts),
		config: config,
		logger: logger,
		stats:  &cacheStats{},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dc.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Detection cache initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return dc, nil
}

// Get looks up the cached detection for the given text and language.
// Failures are soft: any Redis or decode error is logged and reported as a
// miss so the caller falls through to a fresh detection.
func (dc *DetectionCache) Get(ctx context.Context, language, text string) ([]pii.Entity, bool) {
	key := dc.key(language, text)

	data, err := dc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		dc.stats.misses.Add(1)
		dc.logger.Debug("Cache miss", zap.String("key", key))
		return nil, false
	} else if err != nil {
		dc.logger.Error("Cache lookup failed", zap.Error(err))
		return nil, false
	}

	var cached CachedDetection
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		dc.logger.Error("Failed to unmarshal cached detection", zap.Error(err))
		dc.client.Del(ctx, key) // drop the corrupted entry
		return nil, false
	}

	dc.stats.hits.Add(1)
	dc.logger.Debug("Cache hit",
		zap.String("key", key),
		zap.Int("entities", len(cached.Entities)))

	return cached.Entities, true
}

// Set caches a detection result with the configured TTL.
func (dc *DetectionCache) Set(ctx context.Context, language, text string, entities []pii.Entity) error {
	key := dc.key(language, text)

	cached := CachedDetection{
		Language: language,
		Entities: entities,
		CachedAt: time.Now(),
		TTL:      int64(dc.config.DefaultTTL.Seconds()),
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal detection for caching: %w", err)
	}

	if err := dc.client.Set(ctx, key, data, dc.config.DefaultTTL).Err(); err != nil {
		dc.logger.Error("Failed to cache detection", zap.Error(err))
		return fmt.Errorf("failed to cache detection: %w", err)
	}

	dc.logger.Debug("Detection cached successfully",
		zap.String("key", key),
		zap.Int("entities", len(entities)))

	return nil
}

// GetStats combines in-process hit counters with Redis memory and key
// counts.
func (dc *DetectionCache) GetStats(ctx context.Context) (*Stats, error) {
	info, err := dc.client.Info(ctx, "memory", "stats").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := &Stats{
		Hits:   dc.stats.hits.Load(),
		Misses: dc.stats.misses.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	stats.MemoryUsage = parseUsedMemory(info)

	if keys, err := dc.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\r\n") {
		val, ok := strings.CutPrefix(line, "used_memory:")
		if !ok {
			continue
		}
		if mem, err := strconv.ParseInt(val, 10, 64); err == nil {
			return mem
		}
	}
	return 0
}

// Clear removes all cached detections under the configured key prefix.
// Other keys in the same Redis database are untouched.
func (dc *DetectionCache) Clear(ctx context.Context) error {
	var keys []string
	iter := dc.client.Scan(ctx, 0, dc.config.KeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	if len(keys) > 0 {
		if err := dc.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	dc.logger.Info("Detection cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close shuts down the Redis connection
func (dc *DetectionCache) Close() error {
	return dc.client.Close()
}

// key derives the cache key from a hash of the language and text. Raw text
// never appears in Redis keys.
func (dc *DetectionCache) key(language, text string) string {
	sum := sha256.Sum256([]byte(language + "\x00" + text))
	return dc.config.KeyPrefix + hex.EncodeToString(sum[:])
}

// maskRedisURL hides credentials in the Redis URL for logging
func maskRedisURL(url string) string {
	if idx := strings.Index(url, "@"); idx != -1 {
		if schemeIdx := strings.Index(url, "://"); schemeIdx != -1 {
			return url[:schemeIdx+3] + "***" + url[idx:]
		}
	}
	return url
}
