package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"
)

// ErrTimeout marks an attempt that exceeded the per-call timeout. The
// underlying request may still be in flight; it is abandoned for accounting
// purposes.
var ErrTimeout = errors.New("resilience: operation timed out")

// Config holds the composed policy knobs with their documented defaults.
type Config struct {
	// MaxRetries is the total number of attempts per call. Default 3.
	MaxRetries int
	// Timeout bounds each individual attempt. Default 30s.
	Timeout time.Duration
	// RetryDelay is the base delay between attempts, doubled per retry with
	// up to 10% jitter. Zero disables waiting.
	RetryDelay time.Duration
	// Breaker configures the per-resource circuit breakers.
	Breaker BreakerConfig
}

// DefaultConfig returns the documented policy defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		Timeout:    30 * time.Second,
		RetryDelay: 500 * time.Millisecond,
		Breaker:    DefaultBreakerConfig(),
	}
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	c.Breaker = c.Breaker.withDefaults()
	return c
}

// Operation is a call into the external reasoner capability.
type Operation[T any] func(ctx context.Context) (T, error)

// Result is the outcome of an executed operation. Degraded results carry the
// fallback value (or the zero value) plus a human-readable explanation, so
// callers branch on the marker instead of handling errors.
type Result[T any] struct {
	Value    T
	Degraded bool
	Message  string
}

// Executor owns one circuit breaker per named resource and applies the
// composed policy around operations. Safe for concurrent use.
type Executor struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewExecutor creates an executor with the given policy configuration.
func NewExecutor(cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// Breaker returns the breaker for a named resource, creating it on first use.
// Breaker state is never shared across resources.
func (e *Executor) Breaker(resource string) *Breaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.breakers[resource]
	if !ok {
		b = NewBreaker(resource, e.cfg.Breaker)
		e.breakers[resource] = b
	}
	return b
}

// Execute runs op under the composed policy for the named resource:
// fallback wraps retry wraps the circuit breaker wraps the per-attempt
// timeout. It never returns an error: on exhaustion the caller-supplied
// fallback value (or the zero value) comes back marked degraded. Retries are
// sequential within this call.
func Execute[T any](ctx context.Context, e *Executor, resource string, op Operation[T], fallback *T) Result[T] {
	breaker := e.Breaker(resource)
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		if err := breaker.Allow(); err != nil {
			// Fail fast without invoking the operation; an open circuit does
			// not accrue additional failures.
			lastErr = err
			e.logger.Debug("call rejected by circuit breaker",
				"resource", resource, "attempt", attempt)
		} else {
			value, err := runWithTimeout(ctx, e.cfg.Timeout, op)
			if err == nil {
				breaker.RecordSuccess()
				return Result[T]{Value: value}
			}
			breaker.RecordFailure()
			lastErr = err
			e.logger.Warn("resilient call attempt failed",
				"resource", resource, "attempt", attempt, "error", err)
		}

		if attempt < e.cfg.MaxRetries {
			if err := e.waitBeforeRetry(ctx, attempt); err != nil {
				lastErr = err
				break
			}
		}
	}

	return degraded(resource, lastErr, fallback)
}

// runWithTimeout bounds a single attempt. A timed-out attempt is abandoned:
// the goroutine may still be running, but its result is discarded.
func runWithTimeout[T any](ctx context.Context, timeout time.Duration, op Operation[T]) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := op(attemptCtx)
		done <- outcome{value, err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-attemptCtx.Done():
		var zero T
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return zero, attemptCtx.Err()
	}
}

// waitBeforeRetry sleeps base * 2^(attempt-1) with up to 10% jitter,
// returning early if the context is cancelled.
func (e *Executor) waitBeforeRetry(ctx context.Context, attempt int) error {
	if e.cfg.RetryDelay <= 0 {
		return nil
	}
	delay := float64(e.cfg.RetryDelay) * math.Pow(2, float64(attempt-1))
	delay *= 1.0 + rand.Float64()*0.1

	timer := time.NewTimer(time.Duration(delay))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func degraded[T any](resource string, lastErr error, fallback *T) Result[T] {
	message := fmt.Sprintf("%s unavailable; using fallback", resource)
	if lastErr != nil {
		message = fmt.Sprintf("%s unavailable (%v); using fallback", resource, lastErr)
	}
	result := Result[T]{Degraded: true, Message: message}
	if fallback != nil {
		result.Value = *fallback
	}
	return result
}
