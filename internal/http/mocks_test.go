package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_pos/internal/catalog"
	"github.com/fjod/go_pos/internal/checkout"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/money"
	"github.com/fjod/go_pos/internal/sales"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testToken   = "test-token"
	testCashier = "cashier-1"
)

type catalogMock struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
	err      error
}

func newCatalogMock(products ...*domain.Product) *catalogMock {
	m := &catalogMock{products: make(map[int64]*domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *catalogMock) setStock(id int64, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id].Stock = stock
}

func (m *catalogMock) Products(ctx context.Context) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Product
	for id := int64(1); id <= int64(len(m.products)); id++ {
		if p, ok := m.products[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *catalogMock) Lookup(ctx context.Context, code string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Code == code || (p.Barcode != "" && p.Barcode == code) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, catalog.ErrProductNotFound
}

func (m *catalogMock) StockInfo(ctx context.Context, id int64) (*domain.Product, domain.StockInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.StockInfo{}, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, cp.StockInfo(), nil
}

func (m *catalogMock) StockLevels(ctx context.Context, ids []int64) (map[int64]domain.StockInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	levels := make(map[int64]domain.StockInfo)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			levels[id] = p.StockInfo()
		}
	}
	return levels, nil
}

type sessionStoreMock struct {
	mu       sync.Mutex
	sessions map[string]*domain.TerminalSession
	saveErr  error
}

func (s *sessionStoreMock) Load(ctx context.Context, terminalID string) (*domain.TerminalSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[terminalID]; ok {
		return session, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *sessionStoreMock) Save(ctx context.Context, session *domain.TerminalSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.sessions[session.TerminalID] = session
	return nil
}

type submitterMock struct {
	mu       sync.Mutex
	requests []domain.SaleRequest
	err      error
}

func (s *submitterMock) Submit(ctx context.Context, req domain.SaleRequest) (*domain.SaleReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	receipt := &domain.SaleReceipt{
		Code:      "S-000001",
		Total:     req.Total,
		Method:    req.Method,
		Change:    req.MethodDetails.Change,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	return receipt, nil
}

type salesMock struct {
	sales     []*domain.Sale
	lastLimit int
}

func (m *salesMock) GetSale(ctx context.Context, code string) (*domain.Sale, error) {
	for _, s := range m.sales {
		if s.Code == code {
			return s, nil
		}
	}
	return nil, sales.ErrSaleNotFound
}

func (m *salesMock) RecentSales(ctx context.Context, limit int) ([]*domain.Sale, error) {
	m.lastLimit = limit
	return m.sales, nil
}

type testServer struct {
	router    http.Handler
	catalog   *catalogMock
	sessions  *sessionStoreMock
	submitter *submitterMock
	sales     *salesMock
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	formatter, err := money.NewFormatter("en-US", "USD")
	require.NoError(t, err)

	ts := &testServer{
		catalog: newCatalogMock(
			&domain.Product{ID: 1, Code: "BEV-001", Barcode: "7501055300075", Name: "Cola 600ml", Category: "Beverages", Price: dec("18.50"), Stock: 48},
			&domain.Product{ID: 2, Code: "DRY-002", Name: "Yogurt", Category: "Dairy", Price: dec("10.00"), Stock: 3},
			&domain.Product{ID: 3, Code: "HOM-001", Name: "Matches", Category: "Home", Price: dec("4.00"), Stock: 0},
		),
		sessions:  &sessionStoreMock{sessions: make(map[string]*domain.TerminalSession)},
		submitter: &submitterMock{},
		sales: &salesMock{sales: []*domain.Sale{{
			Code:          "S-000001",
			TransactionID: "tx-1",
			TerminalID:    "T1",
			CashierID:     testCashier,
			Items:         []domain.LineItem{{ProductID: 1, Name: "Cola 600ml", UnitPrice: dec("18.50"), Quantity: 2}},
			Total:         dec("37.00"),
			Method:        domain.PaymentMethodCard,
			MethodDetails: domain.MethodDetails{CardType: domain.CardTypeDebit},
			CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}}},
	}

	ts.router = NewRouter(RouterConfig{
		Catalog:        ts.catalog,
		Terminals:      checkout.NewRegistry(ts.sessions, zap.NewNop()),
		Submitter:      ts.submitter,
		Sales:          ts.sales,
		Money:          formatter,
		Log:            zap.NewNop(),
		CashierTokens:  map[string]string{testToken: testCashier},
		RequestTimeout: 5 * time.Second,
		MaxBodySize:    1 << 20,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}
