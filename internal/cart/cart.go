// Package cart keeps the line items of the active sale consistent with the stock snapshot.
//
// A Store is not safe for concurrent use; the checkout coordinator serialises access to it.
package cart

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
)

type Store struct {
	items []domain.LineItem
}

func NewStore() *Store {
	return &Store{}
}

// Restore rebuilds a store from persisted line items, keeping their order.
// Items with a quantity below 1 are dropped.
func Restore(items []domain.LineItem) *Store {
	s := &Store{items: make([]domain.LineItem, 0, len(items))}
	for _, item := range items {
		if item.Quantity < 1 {
			continue
		}
		s.items = append(s.items, item)
	}
	return s
}

// AddItem inserts the product with quantity 1, or adds one unit when it is already in the cart.
func (s *Store) AddItem(product domain.Product, stock domain.StockInfo) error {
	if s.indexOf(product.ID) >= 0 {
		_, err := s.IncrementQuantity(product.ID, 1, stock)
		return err
	}
	if stock.AvailableStock < 1 {
		return domain.ErrOutOfStock
	}

	s.items = append(s.items, domain.LineItem{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  1,
		Category:  product.Category,
	})
	return nil
}

// SetQuantity replaces the quantity of a line item.
// A quantity below 1 removes the item; a quantity above the available stock is rejected
// and the previous quantity is kept.
func (s *Store) SetQuantity(productID int64, quantity int, stock domain.StockInfo) error {
	i := s.indexOf(productID)
	if i < 0 {
		return domain.ErrItemNotFound
	}
	if quantity < 1 {
		s.removeAt(i)
		return nil
	}
	if quantity > stock.AvailableStock {
		return domain.ErrMaxStockReached
	}

	s.items[i].Quantity = quantity
	return nil
}

// IncrementQuantity changes the quantity of a line item by delta and returns the applied change.
// Positive deltas are capped by the remaining headroom (available - current), so a quick add
// of N units adds at most what is left. Negative deltas behave like SetQuantity.
func (s *Store) IncrementQuantity(productID int64, delta int, stock domain.StockInfo) (int, error) {
	i := s.indexOf(productID)
	if i < 0 {
		return 0, domain.ErrItemNotFound
	}
	current := s.items[i].Quantity

	if delta <= 0 {
		if delta == 0 {
			return 0, nil
		}
		if err := s.SetQuantity(productID, current+delta, stock); err != nil {
			return 0, err
		}
		if current+delta < 1 {
			return -current, nil
		}
		return delta, nil
	}

	headroom := stock.AvailableStock - current
	if headroom <= 0 {
		return 0, domain.ErrMaxStockReached
	}
	applied := min(delta, headroom)
	s.items[i].Quantity = current + applied
	return applied, nil
}

// RemoveItem deletes the line item. Removing a product that is not in the cart is a no-op.
func (s *Store) RemoveItem(productID int64) {
	if i := s.indexOf(productID); i >= 0 {
		s.removeAt(i)
	}
}

func (s *Store) Clear() {
	s.items = nil
}

func (s *Store) IsEmpty() bool {
	return len(s.items) == 0
}

func (s *Store) Len() int {
	return len(s.items)
}

func (s *Store) Subtotal() decimal.Decimal {
	return domain.SumItems(s.items)
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []domain.LineItem {
	out := make([]domain.LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Item returns the line item for the product, if present.
func (s *Store) Item(productID int64) (domain.LineItem, bool) {
	i := s.indexOf(productID)
	if i < 0 {
		return domain.LineItem{}, false
	}
	return s.items[i], true
}

func (s *Store) indexOf(productID int64) int {
	for i := range s.items {
		if s.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) removeAt(i int) {
	s.items = append(s.items[:i], s.items[i+1:]...)
}

// ParseQuantity converts raw quantity input into a whole number.
// Fractional or non-numeric input is rejected with ErrInvalidQuantity.
func ParseQuantity(raw string) (int, error) {
	q, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidQuantity, raw)
	}
	return q, nil
}
