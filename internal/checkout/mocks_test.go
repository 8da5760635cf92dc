package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
)

// mockSubmitter implements SaleSubmitter for testing
type mockSubmitter struct {
	m        sync.Mutex
	requests []domain.SaleRequest
	err      error
	release  chan struct{} // when set, Submit blocks until it is closed
	started  chan struct{}
}

func (m *mockSubmitter) Submit(_ context.Context, req domain.SaleRequest) (*domain.SaleReceipt, error) {
	m.m.Lock()
	m.requests = append(m.requests, req)
	release, started := m.release, m.started
	err := m.err
	m.m.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return &domain.SaleReceipt{Code: "S-0001", Total: req.Total, Method: req.Method, CreatedAt: req.Timestamp}, nil
}

func (m *mockSubmitter) calls() []domain.SaleRequest {
	m.m.Lock()
	defer m.m.Unlock()
	out := make([]domain.SaleRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// memoryStore implements SessionStore for testing
type memoryStore struct {
	m        sync.Mutex
	sessions map[string]*domain.TerminalSession
	loadErr  error
	saveErr  error
	saves    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]*domain.TerminalSession)}
}

func (s *memoryStore) Load(_ context.Context, terminalID string) (*domain.TerminalSession, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	session, ok := s.sessions[terminalID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *memoryStore) Save(_ context.Context, session *domain.TerminalSession) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	var current int64
	if existing, ok := s.sessions[session.TerminalID]; ok {
		current = existing.Version
	}
	if session.Version != current+1 {
		return domain.ErrSessionConflict
	}
	s.sessions[session.TerminalID] = session
	return nil
}

func (s *memoryStore) put(session *domain.TerminalSession) {
	s.m.Lock()
	defer s.m.Unlock()
	s.sessions[session.TerminalID] = session
}

func (s *memoryStore) remove(terminalID string) {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.sessions, terminalID)
}

func (s *memoryStore) setErrors(load, save error) {
	s.m.Lock()
	defer s.m.Unlock()
	s.loadErr, s.saveErr = load, save
}

func (s *memoryStore) get(terminalID string) (*domain.TerminalSession, bool) {
	s.m.Lock()
	defer s.m.Unlock()
	session, ok := s.sessions[terminalID]
	return session, ok
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func product(id int64, price string) domain.Product {
	return domain.Product{ID: id, Name: "product", Price: dec(price)}
}

func stock(id int64, available int) domain.StockInfo {
	return domain.StockInfo{ProductID: id, AvailableStock: available}
}

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestCoordinator() *Coordinator {
	c := NewCoordinator("T1")
	c.now = func() time.Time { return fixedNow }
	var n int
	c.newID = func() string {
		n++
		return fmt.Sprintf("tx-%d", n)
	}
	return c
}
