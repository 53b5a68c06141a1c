package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache key kinds. Keys are built as <prefix>:<kind>:<symbol>:<n> where n is
// the window size for analysis entries and the wavelength for evaluations.
const (
	KindAnalysis = "analysis"
	KindEvaluate = "evaluate"
)

// AnalysisCacheEntry represents a cached analysis payload with metadata
type AnalysisCacheEntry struct {
	Payload   json.RawMessage `json:"payload"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// AnalysisCacheStats tracks cache performance metrics
type AnalysisCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// RedisAnalysisCache stores serialized analysis results in Redis so repeat
// requests skip the heatmap build.
type RedisAnalysisCache struct {
	redis  *redis.Client
	ttl    time.Duration
	stats  *AnalysisCacheStats
	prefix string
}

// NewRedisAnalysisCache creates a new Redis-based analysis cache
func NewRedisAnalysisCache(redisClient *redis.Client, prefix string, ttl time.Duration) *RedisAnalysisCache {
	if prefix == "" {
		prefix = "cyclescope"
	}
	return &RedisAnalysisCache{
		redis:  redisClient,
		ttl:    ttl,
		stats:  &AnalysisCacheStats{},
		prefix: prefix,
	}
}

// Key builds the cache key for a kind, symbol and window/wavelength value
func (c *RedisAnalysisCache) Key(kind, symbol string, n int) string {
	return fmt.Sprintf("%s:%s:%s:%d", c.prefix, kind, strings.ToLower(symbol), n)
}

// Get retrieves a cached payload. The second return reports whether the
// entry existed and deserialized.
func (c *RedisAnalysisCache) Get(ctx context.Context, kind, symbol string, n int) (json.RawMessage, bool) {
	cacheKey := c.Key(kind, symbol, n)

	data, err := c.redis.Get(ctx, cacheKey).Result()
	if err == redis.Nil {
		// Cache miss
		c.stats.mu.Lock()
		c.stats.Misses++
		c.stats.mu.Unlock()
		return nil, false
	}
	if err != nil {
		log.Printf("Redis error getting %s: %v", cacheKey, err)
		c.stats.mu.Lock()
		c.stats.Misses++
		c.stats.mu.Unlock()
		return nil, false
	}

	var entry AnalysisCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		log.Printf("Error deserializing cached entry %s: %v", cacheKey, err)
		c.stats.mu.Lock()
		c.stats.Misses++
		c.stats.mu.Unlock()
		return nil, false
	}

	// The Redis TTL is the hard expiry. A stale entry that survived it is
	// still served so a clock skew cannot trigger a recompute storm.
	if time.Now().After(entry.ExpiresAt) {
		log.Printf("Cached entry %s past its soft expiry, serving anyway", cacheKey)
	}

	// Cache hit
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()

	return entry.Payload, true
}

// Set serializes a payload and stores it with the configured TTL
func (c *RedisAnalysisCache) Set(ctx context.Context, kind, symbol string, n int, payload interface{}) {
	cacheKey := c.Key(kind, symbol, n)

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error serializing payload for %s: %v", cacheKey, err)
		return
	}

	now := time.Now()
	entry := AnalysisCacheEntry{
		Payload:   raw,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Error serializing cache entry %s: %v", cacheKey, err)
		return
	}

	if err := c.redis.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
		log.Printf("Redis error setting %s: %v", cacheKey, err)
		return
	}

	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()

	log.Printf("Cached %d bytes at %s (TTL: %v)", len(raw), cacheKey, c.ttl)
}

// GetStats returns current cache statistics
func (c *RedisAnalysisCache) GetStats() AnalysisCacheStats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return AnalysisCacheStats{
		Hits:   c.stats.Hits,
		Misses: c.stats.Misses,
		Sets:   c.stats.Sets,
	}
}

// LogStats logs current cache performance statistics
func (c *RedisAnalysisCache) LogStats() {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	log.Printf("Analysis Cache Stats - Hits: %d, Misses: %d, Sets: %d, Hit Rate: %.2f%%",
		stats.Hits, stats.Misses, stats.Sets, hitRate)
}

// Clear removes all cached entries under the prefix
func (c *RedisAnalysisCache) Clear(ctx context.Context) error {
	pattern := c.prefix + ":*"

	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing cache: %w", err)
	}

	log.Printf("Cleared %d analysis cache entries", len(keys))
	return nil
}

// InvalidateSymbol removes every cached entry for one symbol across kinds
func (c *RedisAnalysisCache) InvalidateSymbol(ctx context.Context, symbol string) error {
	pattern := fmt.Sprintf("%s:*:%s:*", c.prefix, strings.ToLower(symbol))

	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning cache keys for %s: %w", symbol, err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error invalidating cache for %s: %w", symbol, err)
	}

	log.Printf("Invalidated %d cache entries for %s", len(keys), symbol)
	return nil
}

// Keys returns every cached key under the prefix, prefix stripped
func (c *RedisAnalysisCache) Keys(ctx context.Context) ([]string, error) {
	pattern := c.prefix + ":*"

	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error scanning cache keys: %w", err)
	}

	var stripped []string
	prefixLen := len(c.prefix) + 1
	for _, key := range keys {
		if len(key) > prefixLen {
			stripped = append(stripped, key[prefixLen:])
		}
	}

	return stripped, nil
}

// Warm pre-computes analysis entries for the given symbols, skipping any
// that are already cached
func (c *RedisAnalysisCache) Warm(ctx context.Context, symbols []string, windowSize int, compute func(string) (interface{}, error)) error {
	log.Printf("Warming analysis cache for %d symbols...", len(symbols))

	for _, symbol := range symbols {
		if _, exists := c.Get(ctx, KindAnalysis, symbol, windowSize); exists {
			log.Printf("Analysis for %s already cached, skipping", symbol)
			continue
		}

		payload, err := compute(symbol)
		if err != nil {
			log.Printf("Warning: Failed to warm cache for %s: %v", symbol, err)
			continue
		}

		c.Set(ctx, KindAnalysis, symbol, windowSize, payload)
		log.Printf("Warmed cache for %s", symbol)
	}

	log.Printf("Analysis cache warming completed")
	return nil
}
