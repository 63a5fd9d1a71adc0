// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience guards outbound calls to third-party APIs.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/cutroom/cutroom/internal/metrics"
)

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrCircuitOpen is returned without calling the guarded function while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CircuitBreaker opens after threshold consecutive failures and lets a probe
// through once resetTimeout has elapsed.
type CircuitBreaker struct {
	mu           sync.Mutex
	name         string
	state        State
	failures     int
	threshold    int
	resetTimeout time.Duration
	openedAt     time.Time
	clock        clock

	halfOpenSuccesses int
	halfOpenRequired  int

	// isFailure decides whether an error counts against the upstream.
	isFailure func(error) bool
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

func WithClock(c clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// WithHalfOpenSuccessThreshold sets how many probes must succeed before closing.
func WithHalfOpenSuccessThreshold(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.halfOpenRequired = n
		}
	}
}

// WithFailureClassifier excludes errors such as client mistakes from tripping the breaker.
func WithFailureClassifier(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.isFailure = fn }
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(name string, threshold int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}

	cb := &CircuitBreaker{
		name:             name,
		state:            StateClosed,
		threshold:        threshold,
		resetTimeout:     resetTimeout,
		clock:            realClock{},
		halfOpenRequired: 1,
		isFailure:        func(err error) bool { return err != nil },
	}
	for _, opt := range opts {
		opt(cb)
	}

	metrics.SetCircuitBreakerState(cb.name, string(cb.state))
	return cb
}

// Name returns the component name used for metrics.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs fn respecting the breaker state.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.AllowRequest() {
		return ErrCircuitOpen
	}

	err := fn()
	if err != nil && cb.isFailure(err) {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return err
}

// AllowRequest reports whether a call may proceed, moving an expired open
// breaker to half-open.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	default:
		if cb.clock.Now().Sub(cb.openedAt) >= cb.resetTimeout {
			cb.transitionTo(StateHalfOpen)
			return true
		}
		return false
	}
}

// RecordFailure counts a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	switch cb.state {
	case StateHalfOpen:
		metrics.RecordCircuitBreakerTrip(cb.name, "half_open_failure")
		cb.transitionTo(StateOpen)
	case StateClosed:
		if cb.failures >= cb.threshold {
			metrics.RecordCircuitBreakerTrip(cb.name, "threshold_exceeded")
			cb.transitionTo(StateOpen)
		}
	}
}

// RecordSuccess counts a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.halfOpenRequired {
			cb.transitionTo(StateClosed)
		}
	}
}

// transitionTo updates state and metrics. Caller must hold lock.
func (cb *CircuitBreaker) transitionTo(newState State) {
	if cb.state == newState {
		return
	}
	cb.state = newState
	cb.halfOpenSuccesses = 0
	if newState == StateOpen {
		cb.openedAt = cb.clock.Now()
	}
	metrics.SetCircuitBreakerState(cb.name, string(newState))
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
