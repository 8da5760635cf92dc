// Package session persists the open transaction of each terminal in MongoDB with a Redis
// read-through cache in front of it.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Store struct {
	repo  Repository
	cache Cache
	sfg   singleflight.Group // collapses concurrent cache misses per terminal
	log   *zap.Logger
}

func NewStore(repo Repository, cache Cache, log *zap.Logger) *Store {
	return &Store{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

func (s *Store) Load(ctx context.Context, terminalID string) (*domain.TerminalSession, error) {
	v, err, _ := s.sfg.Do(terminalID, func() (any, error) {
		session, err := s.cache.Get(ctx, terminalID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("session cache get failed", zap.String("terminal_id", terminalID), zap.Error(err))
		}

		session, err = s.repo.GetSession(ctx, terminalID)
		if err != nil {
			return nil, err
		}

		// a save that lands meanwhile has already cached a newer revision
		go func(session domain.TerminalSession) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.SetIfAbsent(ctx, &session); err != nil {
				s.log.Warn("session cache set failed", zap.String("terminal_id", terminalID), zap.Error(err))
			}
		}(*session)

		return session, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.TerminalSession), nil
}

// Save writes the session and caches it. A conflicting save drops the cached copy, which may
// be the stale revision the caller started from.
func (s *Store) Save(ctx context.Context, session *domain.TerminalSession) error {
	if err := s.repo.UpsertSession(ctx, session); err != nil {
		if errors.Is(err, domain.ErrSessionConflict) {
			s.invalidate(session.TerminalID)
		}
		return err
	}
	if err := s.cache.Set(ctx, session); err != nil {
		s.log.Warn("session cache set failed", zap.String("terminal_id", session.TerminalID), zap.Error(err))
		s.invalidate(session.TerminalID)
	}
	return nil
}

func (s *Store) invalidate(terminalID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, terminalID); err != nil {
		s.log.Warn("session cache invalidate failed", zap.String("terminal_id", terminalID), zap.Error(err))
	}
}
