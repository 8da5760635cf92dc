package session

import (
	"context"
	"sync"

	"github.com/fjod/go_pos/internal/domain"
)

type mockRepository struct {
	m        sync.RWMutex
	sessions map[string]*domain.TerminalSession
	err      error
	gets     int
}

func newMockRepository() *mockRepository {
	return &mockRepository{sessions: make(map[string]*domain.TerminalSession)}
}

func (m *mockRepository) GetSession(_ context.Context, terminalID string) (*domain.TerminalSession, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	session, ok := m.sessions[terminalID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (m *mockRepository) UpsertSession(_ context.Context, session *domain.TerminalSession) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sessions[session.TerminalID] = session
	return nil
}

func (m *mockRepository) getCalls() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.gets
}

type mockCache struct {
	m        sync.RWMutex
	sessions map[string]*domain.TerminalSession
	getErr   error
	setErr   error
	deletes  int
}

func newMockCache() *mockCache {
	return &mockCache{sessions: make(map[string]*domain.TerminalSession)}
}

func (c *mockCache) Get(_ context.Context, terminalID string) (*domain.TerminalSession, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	session, ok := c.sessions[terminalID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return session, nil
}

func (c *mockCache) Set(_ context.Context, session *domain.TerminalSession) error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.sessions[session.TerminalID] = session
	return nil
}

func (c *mockCache) SetIfAbsent(_ context.Context, session *domain.TerminalSession) error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	if _, ok := c.sessions[session.TerminalID]; !ok {
		c.sessions[session.TerminalID] = session
	}
	return nil
}

func (c *mockCache) Delete(_ context.Context, terminalID string) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.deletes++
	delete(c.sessions, terminalID)
	return nil
}

func (c *mockCache) get(terminalID string) *domain.TerminalSession {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.sessions[terminalID]
}

func (c *mockCache) has(terminalID string) bool {
	c.m.RLock()
	defer c.m.RUnlock()
	_, ok := c.sessions[terminalID]
	return ok
}
