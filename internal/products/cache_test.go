package products

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLookup struct {
	calls   int
	product *Product
	err     error
}

func (c *countingLookup) GetProduct(ctx context.Context, productID string) (*Product, error) {
	c.calls++
	return c.product, c.err
}

func TestCachedLookupServesRepeatLookupsFromCache(t *testing.T) {
	next := &countingLookup{product: &Product{ID: "42", Name: "Shirt", Price: decimal.NewFromInt(10)}}
	lookup := NewCachedLookup(next, NewMemoryCache(time.Minute))

	for i := 0; i < 3; i++ {
		got, err := lookup.GetProduct(context.Background(), "42")
		require.NoError(t, err)
		assert.Equal(t, "Shirt", got.Name)
	}
	assert.Equal(t, 1, next.calls)
}

func TestCachedLookupDoesNotCacheFailures(t *testing.T) {
	next := &countingLookup{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	lookup := NewCachedLookup(next, NewMemoryCache(time.Minute))

	_, err := lookup.GetProduct(context.Background(), "42")
	require.Error(t, err)
	_, err = lookup.GetProduct(context.Background(), "42")
	require.Error(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestMemoryCacheExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	cache := NewMemoryCache(time.Minute)
	cache.now = func() time.Time { return now }

	cache.Set(context.Background(), Product{ID: "1", Images: []string{"a"}})
	got, ok := cache.Get(context.Background(), "1")
	require.True(t, ok)
	got.Images[0] = "mutated"

	again, ok := cache.Get(context.Background(), "1")
	require.True(t, ok)
	assert.Equal(t, "a", again.Images[0], "cached entries must not be shared")

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get(context.Background(), "1")
	assert.False(t, ok)
}

func TestNewCachedLookupWithoutCacheReturnsNext(t *testing.T) {
	next := &countingLookup{}
	assert.Same(t, next, NewCachedLookup(next, nil))
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewFromRaw(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisCache(client, time.Minute, nil)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "42")
	assert.False(t, ok)

	cache.Set(ctx, Product{ID: "42", Name: "Shirt", Price: decimal.RequireFromString("799.0"), InStock: true})
	assert.True(t, mr.Exists("test:product:42"))

	got, ok := cache.Get(ctx, "42")
	require.True(t, ok)
	assert.Equal(t, "Shirt", got.Name)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(799)))

	mr.FastForward(2 * time.Minute)
	_, ok = cache.Get(ctx, "42")
	assert.False(t, ok)
}
