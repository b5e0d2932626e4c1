package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/products"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLookup struct {
	mu       sync.Mutex
	products map[string]*products.Product
	err      error
	calls    []string
}

func (s *stubLookup) GetProduct(ctx context.Context, productID string) (*products.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, productID)
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.products[productID]; ok {
		clone := p.Clone()
		return &clone, nil
	}
	return nil, nil
}

func decodeLines(t *testing.T, raw string) []RemoteCartLine {
	t.Helper()
	var cart RemoteCart
	require.NoError(t, json.Unmarshal([]byte(raw), &cart))
	return cart.Lines()
}

func TestRemoteCartDecodesObjectAndArray(t *testing.T) {
	var object RemoteCart
	require.NoError(t, json.Unmarshal([]byte(`{"id":"c1","items":[{"id":1,"productId":"9","quantity":1,"price":12.5,"active":false}]}`), &object))
	assert.Equal(t, "c1", object.ID.String())
	require.Len(t, object.Items, 1)
	assert.False(t, object.Items[0].IsActive())
	assert.Equal(t, "12.5", object.Items[0].PriceValue().String())

	var array RemoteCart
	require.NoError(t, json.Unmarshal([]byte(`[{"id":2},{"id":3}]`), &array))
	assert.Len(t, array.Items, 2)

	var null RemoteCart
	require.NoError(t, json.Unmarshal([]byte(`null`), &null))
	assert.Empty(t, null.Items)
}

func TestRemoteCartLineUnparseablePriceIsZero(t *testing.T) {
	line := RemoteCartLine{Price: "abc"}
	assert.True(t, line.PriceValue().IsZero())
}

func TestEnrichFallsBackToSynthesizedProduct(t *testing.T) {
	lookup := &stubLookup{err: errors.New("catalog down")}
	enricher := NewEnricher(lookup, nil)

	lines := decodeLines(t, `{"items":[{"id":7,"productId":42,"productName":"Linen Shirt","quantity":2,"price":"799.0","imageUrl":"shirt.png","category":"shirts","active":true}]}`)
	items := enricher.Enrich(context.Background(), lines)

	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, "7", item.ID)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, item.Product.Synthesized)
	assert.Equal(t, "42", item.Product.ID)
	assert.Equal(t, "Linen Shirt", item.Product.Name)
	assert.True(t, item.Product.Price.Equal(decimal.NewFromInt(799)))
	assert.Equal(t, []string{"shirt.png"}, item.Product.Images)
	assert.Equal(t, products.DefaultSizes, item.Product.Sizes)
	assert.Equal(t, products.DefaultColors, item.Product.Colors)
	assert.True(t, item.Product.InStock)
	assert.Equal(t, "S", item.SelectedSize)
	assert.Equal(t, "Black", item.SelectedColor)
}

func TestEnrichNilProductAlsoSynthesizes(t *testing.T) {
	enricher := NewEnricher(&stubLookup{}, nil)
	items := enricher.Enrich(context.Background(), []RemoteCartLine{{ID: "1", ProductID: "missing", Price: "10", Quantity: 1, Active: boolPtr(false)}})

	require.Len(t, items, 1)
	assert.True(t, items[0].Product.Synthesized)
	assert.False(t, items[0].Product.InStock)
	assert.True(t, items[0].Product.Price.Equal(decimal.NewFromInt(10)))
}

func TestEnrichUsesCatalogProductAndKeepsOrder(t *testing.T) {
	lookup := &stubLookup{products: map[string]*products.Product{
		"1": {ID: "1", Name: "One", Price: decimal.NewFromInt(5), Sizes: []string{"M"}, Colors: []string{"Red"}},
		"3": {ID: "3", Name: "Three", Price: decimal.NewFromInt(7)},
	}}
	enricher := NewEnricher(lookup, nil)
	now := time.Unix(500, 0)
	enricher.now = func() time.Time { return now }

	lines := []RemoteCartLine{
		{ID: "a", ProductID: "1", Quantity: 1, Size: "L"},
		{ID: "b", ProductID: "2", ProductName: "Two", Price: "3", Quantity: 1},
		{ID: "c", ProductID: "3", Quantity: 4},
	}
	items := enricher.Enrich(context.Background(), lines)

	require.Len(t, items, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, "One", items[0].Product.Name)
	assert.False(t, items[0].Product.Synthesized)
	assert.Equal(t, "L", items[0].SelectedSize)
	assert.Equal(t, "Red", items[0].SelectedColor)
	assert.True(t, items[1].Product.Synthesized)
	assert.Equal(t, "Three", items[2].Product.Name)
	assert.Equal(t, now, items[2].AddedAt)
	assert.Len(t, lookup.calls, 3)
}

func TestReduceRecomputesTotals(t *testing.T) {
	items := []Item{
		{ID: "1", Quantity: 2, Product: products.Product{Price: decimal.RequireFromString("799.0")}},
		{ID: "2", Quantity: 1, Product: products.Product{Price: decimal.RequireFromString("0.5")}},
	}
	state := reduce(emptyView(), action{kind: actionReconciled, items: items, at: time.Unix(1, 0)})

	assert.Equal(t, 3, state.TotalItems)
	assert.Equal(t, "1598.5", state.TotalAmount.String())
	require.NotNil(t, state.LastSyncedAt)

	state = reduce(state, action{kind: actionStale})
	assert.True(t, state.Stale)
	assert.Equal(t, 3, state.TotalItems)

	state = reduce(state, action{kind: actionReset})
	assert.Empty(t, state.Items)
	assert.NotNil(t, state.Items)
	assert.Zero(t, state.TotalItems)
	assert.True(t, state.TotalAmount.IsZero())
	assert.False(t, state.Stale)
}

func boolPtr(v bool) *bool { return &v }
