package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lexops/privguard/internal/logger"
	"go.uber.org/zap"
)

// DetectionCache is a Redis-backed cache of detection summaries keyed by the
// SHA-256 of the scanned text. Only the text hash ever reaches Redis, never
// the text or any detected value.
type DetectionCache struct {
	client *redis.Client
	config *Config
	logger *logger.Logger

	hits   int64
	misses int64
}

// NewDetectionCache creates a Redis-backed detection cache.
func NewDetectionCache(config *Config, log *logger.Logger) (*DetectionCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Detection cache initialized",
		zap.Int("pool_size", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL),
	)

	return &DetectionCache{
		client: client,
		config: config,
		logger: log,
	}, nil
}

// Get looks up the cached summary for a text.
func (c *DetectionCache) Get(ctx context.Context, text string) (*Summary, bool) {
	data, err := c.client.Get(ctx, c.key(text)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("Cache lookup failed", zap.Error(err))
		}
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&c.hits, 1)
	return &summary, true
}

// Set stores the summary for a text. Failures are logged and swallowed; the
// cache is an optimization, not a dependency.
func (c *DetectionCache) Set(ctx context.Context, text string, summary Summary) {
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(text), data, c.config.DefaultTTL).Err(); err != nil {
		c.logger.Debug("Cache store failed", zap.Error(err))
	}
}

// Stats returns hit/miss counters.
func (c *DetectionCache) Stats() Stats {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	total := hits + misses
	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{Hits: hits, Misses: misses, HitRate: rate}
}

// Close closes the Redis client.
func (c *DetectionCache) Close() error {
	return c.client.Close()
}

func (c *DetectionCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.config.KeyPrefix + hex.EncodeToString(sum[:])
}
