package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int64           `json:"id"`
	Code      string          `json:"code"`
	Barcode   string          `json:"barcode,omitempty"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
}

// StockInfo returns the product's stock as a snapshot usable by the cart.
func (p Product) StockInfo() StockInfo {
	return StockInfo{ProductID: p.ID, AvailableStock: p.Stock}
}

// StockInfo is the last known available quantity of a product.
// It is read-only and may be stale relative to the inventory.
type StockInfo struct {
	ProductID      int64
	AvailableStock int
}
