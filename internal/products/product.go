package products

import (
	"github.com/shopspring/decimal"
)

// Product is the catalog view used to render a cart line.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Images      []string        `json:"images"`
	Category    string          `json:"category,omitempty"`
	Sizes       []string        `json:"sizes"`
	Colors      []string        `json:"colors"`
	InStock     bool            `json:"inStock"`
	// Synthesized is set when the product was built from cart line data
	// because the catalog could not resolve it.
	Synthesized bool `json:"synthesized,omitempty"`
}

// DefaultSizes and DefaultColors fill products whose catalog entry omits them.
var (
	DefaultSizes  = []string{"S", "M", "L", "XL"}
	DefaultColors = []string{"Black", "White"}
)

// Clone returns a deep copy so cached products are never shared mutably.
func (p Product) Clone() Product {
	out := p
	out.Images = append([]string(nil), p.Images...)
	out.Sizes = append([]string(nil), p.Sizes...)
	out.Colors = append([]string(nil), p.Colors...)
	return out
}
