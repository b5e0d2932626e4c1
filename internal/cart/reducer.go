package cart

import (
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/notifications"
	"github.com/shopspring/decimal"
)

type actionKind int

const (
	actionReconciled actionKind = iota
	actionReset
	actionStatus
	actionOpen
	actionNotice
	actionStale
)

type action struct {
	kind   actionKind
	items  []Item
	status Status
	open   bool
	notice *notifications.Notice
	at     time.Time
}

// reduce returns the next view. Totals are always recomputed from items.
func reduce(state ViewState, a action) ViewState {
	next := state
	switch a.kind {
	case actionReconciled:
		next.Items = append([]Item{}, a.items...)
		next.Stale = false
		at := a.at
		next.LastSyncedAt = &at
	case actionReset:
		next.Items = []Item{}
		next.Stale = false
		next.LastSyncedAt = nil
	case actionStatus:
		next.Status = a.status
	case actionOpen:
		next.IsOpen = a.open
	case actionNotice:
		next.Notice = a.notice
	case actionStale:
		next.Stale = true
	}
	if next.Items == nil {
		next.Items = []Item{}
	}
	next.TotalItems, next.TotalAmount = totals(next.Items)
	return next
}

func totals(items []Item) (int, decimal.Decimal) {
	count := 0
	amount := decimal.Zero
	for _, item := range items {
		count += item.Quantity
		amount = amount.Add(item.LineTotal())
	}
	return count, amount
}
