// Package cache implements the hybrid TTL cache over subgraph data.
//
// Static entities (ticks, poolDayData) are cached with a TTL; dynamic
// entities (swaps, positions) are excluded entirely because behavioral
// signals are time-sensitive and staleness would hide recent manipulation.
// Expiry is checked on read and expired or corrupt entries are evicted
// immediately; there is no background sweep. The cache is an optimization,
// never a correctness dependency, so every failure path degrades to a miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/poolscope/poolscope/internal/metrics"
)

// ErrNotFound is returned by a Store when a key is absent.
var ErrNotFound = errors.New("cache: entry not found")

// Store is the persistence backend for cache entries. Implementations must
// be safe for concurrent use; same-key writes are last-write-wins.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// envelope wraps cached data with its write timestamp.
type envelope struct {
	CachedAt   time.Time       `json:"cached_at"`
	EntityType string          `json:"entity_type"`
	Data       json.RawMessage `json:"data"`
}

// Cache is the TTL front over a Store.
type Cache struct {
	store    Store
	ttl      time.Duration
	enabled  bool
	entities map[string]bool
	logger   *slog.Logger
	now      func() time.Time // overridable for tests
}

// Option configures the cache.
type Option func(*Cache)

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a TTL cache over the given store. entities maps entity type
// to whether that class participates in caching at all.
func New(store Store, ttl time.Duration, enabled bool, entities map[string]bool, logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		store:    store,
		ttl:      ttl,
		enabled:  enabled,
		entities: entities,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves cached data into out if present and fresh. Returns true on
// a hit. An expired or unparsable entry is evicted and reported as a miss.
func (c *Cache) Get(ctx context.Context, key, entityType string, out any) bool {
	if !c.enabled || !c.entities[entityType] {
		return false
	}

	hashed := hashKey(key)
	raw, err := c.store.Read(ctx, hashed)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("cache read failed", "entity", entityType, "error", err)
		}
		metrics.CacheMissesTotal.WithLabelValues(entityType, "absent").Inc()
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.evict(ctx, hashed)
		metrics.CacheMissesTotal.WithLabelValues(entityType, "corrupt").Inc()
		return false
	}

	if c.now().Sub(env.CachedAt) > c.ttl {
		c.evict(ctx, hashed)
		metrics.CacheMissesTotal.WithLabelValues(entityType, "expired").Inc()
		return false
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		c.evict(ctx, hashed)
		metrics.CacheMissesTotal.WithLabelValues(entityType, "corrupt").Inc()
		return false
	}

	metrics.CacheHitsTotal.WithLabelValues(entityType).Inc()
	return true
}

// Set stores data under key. A marshal or write failure is logged and
// swallowed: the caller already has the data, the cache just stays cold.
func (c *Cache) Set(ctx context.Context, key, entityType string, data any) {
	if !c.enabled || !c.entities[entityType] {
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		c.logger.Warn("cache marshal failed", "entity", entityType, "error", err)
		return
	}

	raw, err := json.Marshal(envelope{
		CachedAt:   c.now(),
		EntityType: entityType,
		Data:       payload,
	})
	if err != nil {
		c.logger.Warn("cache marshal failed", "entity", entityType, "error", err)
		return
	}

	if err := c.store.Write(ctx, hashKey(key), raw); err != nil {
		c.logger.Warn("cache write failed", "entity", entityType, "error", err)
	}
}

func (c *Cache) evict(ctx context.Context, hashedKey string) {
	if err := c.store.Delete(ctx, hashedKey); err != nil && !errors.Is(err, ErrNotFound) {
		c.logger.Warn("cache evict failed", "error", err)
	}
}

// hashKey produces a filesystem- and redis-safe key.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
