package domain

import "github.com/shopspring/decimal"

// LineItem is one product entry of the active cart.
type LineItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Category  string          `json:"category,omitempty"`
}

func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SumItems returns Σ unitPrice × quantity.
func SumItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// SameItems reports whether both carts hold the same lines in the same order.
func SameItems(a, b []LineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ProductID != b[i].ProductID || a[i].Quantity != b[i].Quantity || !a[i].UnitPrice.Equal(b[i].UnitPrice) {
			return false
		}
	}
	return true
}
