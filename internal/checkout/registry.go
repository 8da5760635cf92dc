package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/logger"
	"go.uber.org/zap"
)

// DefaultIdleTimeout is how long an untouched terminal is kept in memory.
const DefaultIdleTimeout = 15 * time.Minute

// SessionStore persists the open transaction of each terminal.
// Load returns domain.ErrSessionNotFound when the terminal has nothing stored. Save returns
// domain.ErrSessionConflict unless the stored revision is the one before session.Version.
type SessionStore interface {
	Load(ctx context.Context, terminalID string) (*domain.TerminalSession, error)
	Save(ctx context.Context, session *domain.TerminalSession) error
}

type entry struct {
	c        *Coordinator
	lastUsed time.Time
	unsaved  bool // the last save failed

	saveMu sync.Mutex // one snapshot and save at a time
}

// Registry hands out the coordinator of each terminal, restoring it from the session store
// and persisting it after every change. Before a held coordinator is handed out it is checked
// against the store, so a terminal served by several instances picks up the newest revision.
type Registry struct {
	mu        sync.Mutex
	terminals map[string]*entry
	store     SessionStore
	log       *zap.Logger
	now       func() time.Time
}

func NewRegistry(store SessionStore, log *zap.Logger) *Registry {
	return &Registry{
		terminals: make(map[string]*entry),
		store:     store,
		log:       log,
		now:       time.Now,
	}
}

func (r *Registry) Get(ctx context.Context, terminalID string) (*Coordinator, error) {
	e, err := r.get(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	return e.c, nil
}

func (r *Registry) get(ctx context.Context, terminalID string) (*entry, error) {
	r.mu.Lock()
	held, ok := r.terminals[terminalID]
	if ok {
		held.lastUsed = r.now()
	}
	r.mu.Unlock()

	session, err := r.store.Load(ctx, terminalID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		session = nil
	case err != nil:
		if ok {
			logger.FromContext(ctx, r.log).Warn("failed to check terminal session, using the one in memory",
				zap.String("terminal_id", terminalID), zap.Error(err))
			return held, nil
		}
		return nil, fmt.Errorf("failed to load terminal session: %w", err)
	}
	if ok && !held.c.outdatedBy(session) {
		return held, nil
	}

	var c *Coordinator
	if session == nil {
		c = NewCoordinator(terminalID)
	} else {
		c = RestoreCoordinator(session)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// another request may have restored it meanwhile
	if current, found := r.terminals[terminalID]; found && current != held {
		return current, nil
	}
	if ok {
		logger.FromContext(ctx, r.log).Info("terminal session changed elsewhere, reloaded",
			zap.String("terminal_id", terminalID), zap.Int64("version", c.Version()))
	}
	fresh := &entry{c: c, lastUsed: r.now()}
	r.terminals[terminalID] = fresh
	return fresh, nil
}

func (r *Registry) View(ctx context.Context, terminalID string) (View, error) {
	c, err := r.Get(ctx, terminalID)
	if err != nil {
		return View{}, err
	}
	return c.View(), nil
}

// Update applies fn to the terminal's coordinator and persists the result when fn succeeds.
// It fails with domain.ErrSessionConflict when another instance saved the terminal first;
// the change is dropped and the next call sees the other instance's state.
func (r *Registry) Update(ctx context.Context, terminalID string, fn func(*Coordinator) error) (View, error) {
	e, err := r.get(ctx, terminalID)
	if err != nil {
		return View{}, err
	}
	if err := fn(e.c); err != nil {
		return e.c.View(), err
	}
	if err := r.persist(ctx, e); err != nil {
		return View{}, err
	}
	return e.c.View(), nil
}

// Submit runs the terminal's checkout. The session is persisted on success and on failure,
// so a failed sale survives a restart with its cart.
func (r *Registry) Submit(ctx context.Context, terminalID string, submitter SaleSubmitter) (*domain.SaleReceipt, View, error) {
	e, err := r.get(ctx, terminalID)
	if err != nil {
		return nil, View{}, err
	}

	receipt, err := e.c.Submit(ctx, submitter)
	if errors.Is(err, domain.ErrSubmitInProgress) || errors.Is(err, domain.ErrNotReady) {
		return nil, e.c.View(), err
	}
	// the sale outcome stands even when the session could not be saved
	_ = r.persist(ctx, e)

	log := logger.FromContext(ctx, r.log).With(zap.String("terminal_id", terminalID))
	if err != nil {
		log.Warn("sale submission failed", zap.Error(err))
		return nil, e.c.View(), err
	}
	log.Info("sale completed", zap.String("sale_code", receipt.Code))
	return receipt, e.c.View(), nil
}

// CompleteTransaction clears a terminal whose open transaction was recorded as a sale elsewhere,
// for instance by another instance handling a retried submit. Terminals not held in memory
// are left alone.
func (r *Registry) CompleteTransaction(ctx context.Context, terminalID, transactionID string) bool {
	r.mu.Lock()
	e, ok := r.terminals[terminalID]
	r.mu.Unlock()
	if !ok || !e.c.CompleteTransaction(transactionID) {
		return false
	}
	_ = r.persist(ctx, e)
	logger.FromContext(ctx, r.log).Info("terminal cleared by recorded sale",
		zap.String("terminal_id", terminalID), zap.String("transaction_id", transactionID))
	return true
}

// EvictIdle drops terminals untouched for longer than idle, except those submitting or not yet
// saved. Unsaved terminals get their save retried instead. It returns how many were dropped.
func (r *Registry) EvictIdle(ctx context.Context, idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	var retry []*entry
	evicted := 0
	r.mu.Lock()
	for id, e := range r.terminals {
		switch {
		case e.unsaved:
			retry = append(retry, e)
		case e.lastUsed.Before(cutoff) && e.c.Status() != domain.CheckoutStatusSubmitting:
			delete(r.terminals, id)
			evicted++
		}
	}
	r.mu.Unlock()

	for _, e := range retry {
		_ = r.persist(ctx, e)
	}
	return evicted
}

// Run evicts idle terminals until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdle(ctx, idle); n > 0 {
				r.log.Debug("evicted idle terminals", zap.Int("count", n))
			}
		}
	}
}

// Len is the number of terminals held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.terminals)
}

// persist saves the coordinator as its next revision. Store failures are logged and the
// in-memory coordinator stays authoritative; only a conflict is returned, after dropping
// the coordinator so the next request reloads the stored one.
func (r *Registry) persist(ctx context.Context, e *entry) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	snapshot := e.c.Snapshot()
	log := logger.FromContext(ctx, r.log).With(zap.String("terminal_id", snapshot.TerminalID))

	err := r.store.Save(ctx, snapshot)
	switch {
	case err == nil:
		e.c.markSaved(snapshot.Version)
		r.mu.Lock()
		e.unsaved = false
		r.mu.Unlock()
		return nil
	case errors.Is(err, domain.ErrSessionConflict):
		r.mu.Lock()
		if r.terminals[snapshot.TerminalID] == e {
			delete(r.terminals, snapshot.TerminalID)
		}
		r.mu.Unlock()
		log.Warn("terminal session was saved by another instance, dropping local changes",
			zap.Int64("version", snapshot.Version))
		return err
	default:
		r.mu.Lock()
		e.unsaved = true
		r.mu.Unlock()
		log.Error("failed to persist terminal session", zap.Error(err))
		return nil
	}
}
