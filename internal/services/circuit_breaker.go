package services

import (
	"sync"
	"time"
)

// CircuitBreakerState of one webhook breaker.
type CircuitBreakerState int

const (
	StateClosedCB CircuitBreakerState = iota
	StateOpenCB
	StateHalfOpenCB
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosedCB:
		return "closed"
	case StateOpenCB:
		return "open"
	case StateHalfOpenCB:
		return "half-open"
	default:
		return "unknown"
	}
}

type CircuitBreakerConfig struct {
	MaxFailures     int           `yaml:"max_failures"`
	ResetTimeout    time.Duration `yaml:"reset_timeout"`
	HalfOpenMaxReqs int           `yaml:"half_open_max_reqs"`
}

func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:     5,
		ResetTimeout:    60 * time.Second,
		HalfOpenMaxReqs: 3,
	}
}

// CircuitBreaker guards one webhook target. A run of failed dispatches opens
// the breaker; after ResetTimeout a few probe requests are let through.
type CircuitBreaker struct {
	config       *CircuitBreakerConfig
	state        CircuitBreakerState
	failureCount int
	lastFailTime time.Time
	halfOpenReqs int
	mutex        sync.Mutex
}

func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	return &CircuitBreaker{config: config, state: StateClosedCB}
}

// Allow reports whether a request may go out right now.
func (cb *CircuitBreaker) Allow() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosedCB:
		return true
	case StateOpenCB:
		if time.Since(cb.lastFailTime) > cb.config.ResetTimeout {
			cb.state = StateHalfOpenCB
			cb.halfOpenReqs = 1
			return true
		}
		return false
	case StateHalfOpenCB:
		if cb.halfOpenReqs < cb.config.HalfOpenMaxReqs {
			cb.halfOpenReqs++
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) OnSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount = 0
	if cb.state == StateHalfOpenCB {
		cb.state = StateClosedCB
		cb.halfOpenReqs = 0
	}
}

func (cb *CircuitBreaker) OnFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount++
	cb.lastFailTime = time.Now()

	switch cb.state {
	case StateClosedCB:
		if cb.failureCount >= cb.config.MaxFailures {
			cb.state = StateOpenCB
		}
	case StateHalfOpenCB:
		cb.state = StateOpenCB
		cb.halfOpenReqs = 0
	}
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// BreakerRegistry hands out one breaker per webhook (keyed by trigger type),
// so a dead analysis endpoint cannot choke live updates.
type BreakerRegistry struct {
	config   *CircuitBreakerConfig
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

func NewBreakerRegistry(config *CircuitBreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

func (r *BreakerRegistry) For(key string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[key]
	if !ok {
		cb = NewCircuitBreaker(r.config)
		r.breakers[key] = cb
	}
	return cb
}

// States snapshots every breaker for the status surface.
func (r *BreakerRegistry) States() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.breakers))
	for key, cb := range r.breakers {
		out[key] = cb.State().String()
	}
	return out
}
