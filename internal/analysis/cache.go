package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	cacheKeyPrefix = "analysis:v1:"
	cacheIndexKey  = "analysis:v1:index"
)

// Advice is the cached payload returned to callers.
type Advice struct {
	Recommendation string  `json:"recommendation"`
	Reasoning      string  `json:"reasoning"`
	Confidence     float64 `json:"confidence"`
	Source         string  `json:"source"`
}

// Cache stores advice in Redis so every service replica shares one working
// set. Entries expire via TTL; a sorted-set index ordered by insert time
// backs size-based eviction when the set outgrows MaxEntries.
type Cache struct {
	client     redis.UniversalClient
	logger     logrus.FieldLogger
	ttl        time.Duration
	maxEntries int64
}

// CacheConfig configures a Cache. Zero values fall back to a 30 minute TTL
// and 1000 entries.
type CacheConfig struct {
	Client     redis.UniversalClient
	Logger     logrus.FieldLogger
	TTL        time.Duration
	MaxEntries int64
}

func NewCache(cfg CacheConfig) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Cache{
		client:     cfg.Client,
		logger:     cfg.Logger,
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
	}
}

// Get returns the cached advice for key, or ok=false on a miss. Redis errors
// are logged and reported as misses so a cache outage degrades to recompute
// rather than failure.
func (c *Cache) Get(ctx context.Context, key string) (Advice, bool) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+key).Result()
	if err == redis.Nil {
		return Advice{}, false
	}
	if err != nil {
		c.logger.WithError(err).Warn("Analysis cache read failed")
		return Advice{}, false
	}
	var advice Advice
	if err := json.Unmarshal([]byte(raw), &advice); err != nil {
		c.logger.WithError(err).Warn("Analysis cache entry corrupt, discarding")
		c.client.Del(ctx, cacheKeyPrefix+key)
		return Advice{}, false
	}
	return advice, true
}

// Put stores advice under key and trims the cache if it has outgrown its
// ceiling. Failures are logged but not returned; caching is best effort.
func (c *Cache) Put(ctx context.Context, key string, advice Advice) {
	raw, err := json.Marshal(advice)
	if err != nil {
		c.logger.WithError(err).Warn("Analysis cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Analysis cache write failed")
		return
	}
	score := float64(time.Now().UnixNano())
	if err := c.client.ZAdd(ctx, cacheIndexKey, redis.Z{Score: score, Member: key}).Err(); err != nil {
		c.logger.WithError(err).Warn("Analysis cache index write failed")
		return
	}
	c.evictIfNeeded(ctx)
}

// evictIfNeeded removes the oldest tenth of entries once the index exceeds
// maxEntries. TTL expiry handles most churn; this bounds the worst case.
func (c *Cache) evictIfNeeded(ctx context.Context) {
	count, err := c.client.ZCard(ctx, cacheIndexKey).Result()
	if err != nil || count <= c.maxEntries {
		return
	}
	evict := count / 10
	if evict < 1 {
		evict = 1
	}
	oldest, err := c.client.ZRange(ctx, cacheIndexKey, 0, evict-1).Result()
	if err != nil || len(oldest) == 0 {
		return
	}
	keys := make([]string, len(oldest))
	for i, k := range oldest {
		keys[i] = cacheKeyPrefix + k
	}
	c.client.Del(ctx, keys...)
	c.client.ZRemRangeByRank(ctx, cacheIndexKey, 0, evict-1)
	c.logger.WithField("evicted", len(oldest)).Debug("Analysis cache trimmed")
}

// Len reports the number of indexed entries, for health and tests.
func (c *Cache) Len(ctx context.Context) (int64, error) {
	n, err := c.client.ZCard(ctx, cacheIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("analysis cache size: %w", err)
	}
	return n, nil
}
