package cart

import (
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/notifications"
	"github.com/angelmondragon/packfinderz-storefront/internal/products"
	"github.com/shopspring/decimal"
)

// Status is the reconciliation state of the cart view.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusSyncing         Status = "syncing"
	StatusReady           Status = "ready"
)

// Item is the local projection of one remote cart line.
// SelectedColor and AddedAt are cosmetic and regenerated on every reconciliation.
type Item struct {
	ID            string           `json:"id"`
	Product       products.Product `json:"product"`
	Quantity      int              `json:"quantity"`
	SelectedSize  string           `json:"selectedSize"`
	SelectedColor string           `json:"selectedColor"`
	AddedAt       time.Time        `json:"addedAt"`
}

// LineTotal is price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ViewState is what UI consumers render.
type ViewState struct {
	Status       Status                `json:"status"`
	Items        []Item                `json:"items"`
	TotalItems   int                   `json:"totalItems"`
	TotalAmount  decimal.Decimal       `json:"totalAmount"`
	IsOpen       bool                  `json:"isOpen"`
	Notice       *notifications.Notice `json:"notice,omitempty"`
	Stale        bool                  `json:"stale"`
	LastSyncedAt *time.Time            `json:"lastSyncedAt,omitempty"`
}

func (v ViewState) clone() ViewState {
	out := v
	out.Items = make([]Item, len(v.Items))
	for i, item := range v.Items {
		item.Product = item.Product.Clone()
		out.Items[i] = item
	}
	if v.Notice != nil {
		notice := *v.Notice
		out.Notice = &notice
	}
	if v.LastSyncedAt != nil {
		at := *v.LastSyncedAt
		out.LastSyncedAt = &at
	}
	return out
}

func emptyView() ViewState {
	return ViewState{
		Status:      StatusUnauthenticated,
		Items:       []Item{},
		TotalAmount: decimal.Zero,
	}
}
