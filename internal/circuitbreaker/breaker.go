// Package circuitbreaker wraps calls to a failing dependency so callers fail fast while it recovers.
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrOpen is returned without calling the dependency while the breaker is open or probing.
var ErrOpen = errors.New("circuit breaker is open")

type Settings struct {
	Name string
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32
	// Interval resets the closed-state counts; zero never resets them.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// IsSuccessful decides whether an error counts against the dependency.
	// Nil counts every non-nil error as a failure.
	IsSuccessful func(err error) bool
}

func DefaultSettings(name string) Settings {
	return Settings{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

func New[T any](s Settings, log *zap.Logger) *Breaker[T] {
	threshold := s.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	st := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: s.IsSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](st)}
}

// Execute runs fn unless the breaker is open. The error of fn is returned unchanged.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, errors.Join(ErrOpen, err)
	}
	return result, err
}

func (b *Breaker[T]) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker[T]) Name() string {
	return b.cb.Name()
}
