package cart

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/packfinderz-storefront/pkg/types"
	"github.com/shopspring/decimal"
)

// RemoteCartLine is one backend cart entry. Its id identifies the line, not the product.
type RemoteCartLine struct {
	ID          types.FlexString `json:"id"`
	ProductID   types.FlexString `json:"productId"`
	ProductName string           `json:"productName"`
	Price       types.FlexString `json:"price"`
	Quantity    int              `json:"quantity"`
	Size        string           `json:"size"`
	ImageURL    string           `json:"imageUrl"`
	Category    string           `json:"category"`
	Active      *bool            `json:"active,omitempty"`
}

// IsActive treats a missing flag as active.
func (l RemoteCartLine) IsActive() bool {
	return l.Active == nil || *l.Active
}

// PriceValue parses the serialized price. Unparseable prices are zero.
func (l RemoteCartLine) PriceValue() decimal.Decimal {
	raw := strings.TrimSpace(l.Price.String())
	if raw == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return value
}

// RemoteCart is the backend cart. The backend answers either with an object
// carrying an items array or with the bare array of lines.
type RemoteCart struct {
	ID    types.FlexString `json:"id"`
	Items []RemoteCartLine `json:"items"`
}

func (c *RemoteCart) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = RemoteCart{}
		return nil
	}
	if trimmed[0] == '[' {
		var lines []RemoteCartLine
		if err := json.Unmarshal(trimmed, &lines); err != nil {
			return err
		}
		*c = RemoteCart{Items: lines}
		return nil
	}

	type alias RemoteCart
	var decoded alias
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return err
	}
	*c = RemoteCart(decoded)
	return nil
}

// Lines returns the cart lines, tolerating a nil cart.
func (c *RemoteCart) Lines() []RemoteCartLine {
	if c == nil {
		return nil
	}
	return c.Items
}
