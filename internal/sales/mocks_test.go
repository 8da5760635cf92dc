package sales

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_pos/internal/catalog"
	"github.com/fjod/go_pos/internal/domain"
)

type mockRepository struct {
	m         sync.Mutex
	sales     map[string]*domain.Sale // transactionID -> sale
	stock     map[int64]int           // ledger levels
	createErr error
	getErr    error
	// raceWinner is recorded instead of the submitted sale to simulate a concurrent insert
	raceWinner *domain.Sale
	creates    int
	lastLimit  int
}

func newMockRepository() *mockRepository {
	return &mockRepository{sales: make(map[string]*domain.Sale), stock: make(map[int64]int)}
}

func (m *mockRepository) CreateSale(_ context.Context, sale *domain.Sale) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	if m.raceWinner != nil {
		m.sales[m.raceWinner.TransactionID] = m.raceWinner
		return ErrDuplicateSale
	}
	if _, ok := m.sales[sale.TransactionID]; ok {
		return ErrDuplicateSale
	}
	for _, item := range sale.Items {
		if m.stock[item.ProductID] < item.Quantity {
			return fmt.Errorf("product %d: %w", item.ProductID, ErrStockExhausted)
		}
	}
	for _, item := range sale.Items {
		m.stock[item.ProductID] -= item.Quantity
	}
	sale.Code = fmt.Sprintf("S-%06d", len(m.sales)+1)
	sale.CreatedAt = time.Now()
	m.sales[sale.TransactionID] = sale
	return nil
}

func (m *mockRepository) GetSaleByCode(_ context.Context, code string) (*domain.Sale, error) {
	m.m.Lock()
	defer m.m.Unlock()
	for _, sale := range m.sales {
		if sale.Code == code {
			return sale, nil
		}
	}
	return nil, ErrSaleNotFound
}

func (m *mockRepository) GetSaleByTransactionID(_ context.Context, transactionID string) (*domain.Sale, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	sale, ok := m.sales[transactionID]
	if !ok {
		return nil, ErrSaleNotFound
	}
	return sale, nil
}

func (m *mockRepository) ListSales(_ context.Context, limit int) ([]*domain.Sale, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.lastLimit = limit
	out := make([]*domain.Sale, 0, len(m.sales))
	for _, sale := range m.sales {
		out = append(out, sale)
	}
	return out, nil
}

func (m *mockRepository) SeedStock(_ context.Context, levels map[int64]int) error {
	m.m.Lock()
	defer m.m.Unlock()
	for id, quantity := range levels {
		if _, ok := m.stock[id]; !ok {
			m.stock[id] = quantity
		}
	}
	return nil
}

func (m *mockRepository) StockLevels(_ context.Context, productIDs []int64) (map[int64]int, error) {
	m.m.Lock()
	defer m.m.Unlock()
	levels := make(map[int64]int, len(productIDs))
	for _, id := range productIDs {
		if quantity, ok := m.stock[id]; ok {
			levels[id] = quantity
		}
	}
	return levels, nil
}

func (m *mockRepository) setStock(id int64, quantity int) {
	m.m.Lock()
	defer m.m.Unlock()
	m.stock[id] = quantity
}

type mockCatalog struct {
	products map[int64]*domain.Product
	err      error
}

func (c *mockCatalog) Product(_ context.Context, id int64) (*domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

type mockStockWriter struct {
	m      sync.Mutex
	levels map[int64]int
	err    error
}

func (w *mockStockWriter) SetStock(_ context.Context, productID int64, stock int) error {
	w.m.Lock()
	defer w.m.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.levels == nil {
		w.levels = make(map[int64]int)
	}
	w.levels[productID] = stock
	return nil
}

type stubSubmitter struct {
	err   error
	calls int
}

func (s *stubSubmitter) Submit(_ context.Context, req domain.SaleRequest) (*domain.SaleReceipt, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &domain.SaleReceipt{Code: "S-000001", Total: req.Total, Method: req.Method}, nil
}
