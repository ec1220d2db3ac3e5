package cache

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
	}
}

// CircuitBreaker guards the L2 backend so a dead Redis degrades the cache to
// L1-only instead of slowing every request down.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.RWMutex
	failures    int
	lastFailure time.Time
	state       string // closed, open, half-open
}

func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	return &CircuitBreaker{
		maxFailures:  config.MaxFailures,
		resetTimeout: config.ResetTimeout,
		state:        "closed",
	}
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.RLock()
	state := cb.state
	lastFailure := cb.lastFailure
	cb.mu.RUnlock()

	if state == "open" {
		if time.Since(lastFailure) > cb.resetTimeout {
			cb.mu.Lock()
			cb.state = "half-open"
			cb.failures = 0
			cb.mu.Unlock()
		} else {
			return ErrCircuitOpen
		}
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && !errors.Is(err, ErrCacheMiss) {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.failures >= cb.maxFailures {
			cb.state = "open"
		}
		return err
	}

	cb.failures = 0
	cb.state = "closed"
	return err
}

func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return map[string]interface{}{
		"state":        cb.state,
		"failures":     cb.failures,
		"max_failures": cb.maxFailures,
	}
}
