package products

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/redis"
)

// Cache stores resolved products for a bounded time.
type Cache interface {
	Get(ctx context.Context, productID string) (*Product, bool)
	Set(ctx context.Context, product Product)
}

// CachedLookup serves products from a cache before falling back to the catalog.
// Misses and failures are never cached, so a product that appears in the
// catalog later is picked up on the next reconciliation.
type CachedLookup struct {
	next  Lookup
	cache Cache
}

// NewCachedLookup wraps next with cache. A nil cache returns next unchanged.
func NewCachedLookup(next Lookup, cache Cache) Lookup {
	if cache == nil {
		return next
	}
	return &CachedLookup{next: next, cache: cache}
}

func (c *CachedLookup) GetProduct(ctx context.Context, productID string) (*Product, error) {
	if cached, ok := c.cache.Get(ctx, productID); ok {
		return cached, nil
	}
	product, err := c.next.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product != nil {
		c.cache.Set(ctx, *product)
	}
	return product, nil
}

type memoryEntry struct {
	product   Product
	expiresAt time.Time
}

// MemoryCache is a TTL cache with lazy expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an in-process cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, productID string) (*Product, bool) {
	c.mu.RLock()
	entry, ok := c.entries[productID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, productID)
		c.mu.Unlock()
		return nil, false
	}
	product := entry.product.Clone()
	return &product, true
}

func (c *MemoryCache) Set(_ context.Context, product Product) {
	if c.ttl <= 0 || product.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[product.ID] = memoryEntry{product: product.Clone(), expiresAt: c.now().Add(c.ttl)}
}

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	ProductKey(productID string) string
}

// RedisCache shares resolved products across agent instances.
type RedisCache struct {
	store redisStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewRedisCache builds a cache over the shared redis client.
func NewRedisCache(client *redis.Client, ttl time.Duration, logg *logger.Logger) *RedisCache {
	return &RedisCache{store: client, ttl: ttl, logg: logg}
}

func (c *RedisCache) Get(ctx context.Context, productID string) (*Product, bool) {
	raw, err := c.store.Get(ctx, c.store.ProductKey(productID))
	if err != nil {
		if !redis.IsNil(err) && c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "catalog.cache.read_failed")
		}
		return nil, false
	}
	var product Product
	if err := json.Unmarshal([]byte(raw), &product); err != nil {
		return nil, false
	}
	return &product, true
}

func (c *RedisCache) Set(ctx context.Context, product Product) {
	if c.ttl <= 0 || product.ID == "" {
		return
	}
	payload, err := json.Marshal(product)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.store.ProductKey(product.ID), string(payload), c.ttl); err != nil && c.logg != nil {
		c.logg.Error(ctx, "catalog.cache.write_failed", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cache product"))
	}
}
