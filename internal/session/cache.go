package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, terminalID string) (*domain.TerminalSession, error)
	Set(ctx context.Context, session *domain.TerminalSession) error
	// SetIfAbsent stores the session unless the terminal is already cached.
	SetIfAbsent(ctx context.Context, session *domain.TerminalSession) error
	Delete(ctx context.Context, terminalID string) error
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

func (r *RedisCache) Get(ctx context.Context, terminalID string) (*domain.TerminalSession, error) {
	data, err := r.client.Get(ctx, cacheKey(terminalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var session domain.TerminalSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err)
	}
	return &session, nil
}

// Set stores the session with a jittered TTL so terminals opened together do not expire together.
func (r *RedisCache) Set(ctx context.Context, session *domain.TerminalSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}

	if err := r.client.Set(ctx, cacheKey(session.TerminalID), data, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) SetIfAbsent(ctx context.Context, session *domain.TerminalSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}

	if err := r.client.SetNX(ctx, cacheKey(session.TerminalID), data, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	return nil
}

func (r *RedisCache) ttl() time.Duration {
	return r.baseTTL + time.Duration(rand.IntN(5))*time.Minute
}

func (r *RedisCache) Delete(ctx context.Context, terminalID string) error {
	if err := r.client.Del(ctx, cacheKey(terminalID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(terminalID string) string {
	return fmt.Sprintf("pos:session:%s", terminalID)
}
