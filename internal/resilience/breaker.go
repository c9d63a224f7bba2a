// Package resilience wraps calls to the external reasoner in four nested
// layers, outermost first: fallback, retry, circuit breaker, timeout. Callers
// get either the operation's result or a degraded marker; errors from the
// reasoner never escape this package.
package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Breaker.Allow while the circuit rejects calls.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the circuit breaker state machine position.
type State int

const (
	// StateClosed is normal operation; consecutive failures are counted.
	StateClosed State = iota
	// StateOpen fails fast without invoking the underlying operation.
	StateOpen
	// StateHalfOpen admits a single trial call after the cooldown.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when a circuit opens and how long it stays open.
type BreakerConfig struct {
	// ConsecutiveFailures opens the circuit once this many failures occur
	// with no intervening success. Default 5.
	ConsecutiveFailures int
	// Cooldown is how long the circuit stays open before admitting a
	// half-open trial call. Default 30s.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the documented breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{ConsecutiveFailures: 5, Cooldown: 30 * time.Second}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.ConsecutiveFailures <= 0 {
		c.ConsecutiveFailures = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	return c
}

// Breaker is a circuit breaker for one named resource. Its failure counter is
// the only mutable process state in the engine, so all transitions happen
// under the mutex; a single instance is safe for concurrent use.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	trialInFlight bool

	now func() time.Time
}

// NewBreaker creates a closed breaker for the named resource.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	return &Breaker{
		name: name,
		cfg:  cfg.withDefaults(),
		now:  time.Now,
	}
}

// Name returns the resource this breaker guards.
func (b *Breaker) Name() string { return b.name }

// State returns the current state, moving open -> half-open if the cooldown
// has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state
}

// Allow reports whether a call may proceed. In half-open state exactly one
// trial call is admitted; concurrent callers are rejected until the trial
// resolves via RecordSuccess or RecordFailure.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()

	switch b.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if b.trialInFlight {
			return fmt.Errorf("%w: %s half-open trial in flight", ErrCircuitOpen, b.name)
		}
		b.trialInFlight = true
		return nil
	default:
		return fmt.Errorf("%w: %s cooling down", ErrCircuitOpen, b.name)
	}
}

// RecordSuccess resets the consecutive failure counter and closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.trialInFlight = false
}

// RecordFailure counts a failure. In closed state the circuit opens once the
// consecutive-failure threshold is reached; a half-open trial failure reopens
// the circuit and restarts the cooldown.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.now()
		b.trialInFlight = false
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.ConsecutiveFailures {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	}
}

// failureCount reports the current consecutive-failure count.
func (b *Breaker) failureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// maybeHalfOpen transitions open -> half-open once the cooldown has elapsed.
// Callers must hold the mutex.
func (b *Breaker) maybeHalfOpen() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.state = StateHalfOpen
		b.trialInFlight = false
	}
}
