package cart

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/products"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const defaultLookupConcurrency = 8

// Enricher resolves remote lines into display items. Lookup failures fall back
// to a product synthesized from the line, so enrichment never fails.
type Enricher struct {
	lookup      products.Lookup
	logg        *logger.Logger
	now         func() time.Time
	concurrency int
}

// NewEnricher builds an enricher. A nil lookup synthesizes every product.
func NewEnricher(lookup products.Lookup, logg *logger.Logger) *Enricher {
	return &Enricher{
		lookup:      lookup,
		logg:        logg,
		now:         time.Now,
		concurrency: defaultLookupConcurrency,
	}
}

// Enrich returns one item per line, in line order.
func (e *Enricher) Enrich(ctx context.Context, lines []RemoteCartLine) []Item {
	items := make([]Item, len(lines))
	addedAt := e.now()

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, line := range lines {
		g.Go(func() error {
			product := e.resolve(ctx, line)
			items[i] = toItem(line, product, addedAt)
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func (e *Enricher) resolve(ctx context.Context, line RemoteCartLine) products.Product {
	productID := strings.TrimSpace(line.ProductID.String())
	if e.lookup == nil || productID == "" {
		return synthesize(line)
	}
	product, err := e.lookup.GetProduct(ctx, productID)
	if err != nil || product == nil {
		if err != nil && e.logg != nil {
			e.logg.Debug(e.logg.WithFields(ctx, map[string]any{
				"product_id": productID,
				"error":      err.Error(),
			}), "cart.enrich.fallback")
		}
		return synthesize(line)
	}
	return product.Clone()
}

// synthesize builds the minimal product a line can describe on its own.
func synthesize(line RemoteCartLine) products.Product {
	var images []string
	if url := strings.TrimSpace(line.ImageURL); url != "" {
		images = []string{url}
	}
	return products.Product{
		ID:          line.ProductID.String(),
		Name:        line.ProductName,
		Price:       line.PriceValue(),
		Images:      images,
		Category:    line.Category,
		Sizes:       append([]string(nil), products.DefaultSizes...),
		Colors:      append([]string(nil), products.DefaultColors...),
		InStock:     line.IsActive(),
		Synthesized: true,
	}
}

func toItem(line RemoteCartLine, product products.Product, addedAt time.Time) Item {
	size := strings.TrimSpace(line.Size)
	if size == "" && len(product.Sizes) > 0 {
		size = product.Sizes[0]
	}
	color := ""
	if len(product.Colors) > 0 {
		color = product.Colors[0]
	}
	return Item{
		ID:            line.ID.String(),
		Product:       product,
		Quantity:      line.Quantity,
		SelectedSize:  size,
		SelectedColor: color,
		AddedAt:       addedAt,
	}
}
