// Package resilience provides the process-local circuit breaker and
// retry-with-backoff primitives. In this repository they wrap the APO's
// balance reserve, token mint and compensation calls and the
// reconciliation account CAS; bank adapter, compliance/risk and event
// bus calls are made without them.
// Adapted from the teacher's consumer/circuit_breaker.go; this is the
// network-resilience breaker, distinct from the persisted, business-rule
// EMI circuit breaker owned by the reconciliation service (§4.8).
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/paynet/nexus-clearing/internal/telemetry/log"
)

// State represents the state of a circuit breaker.
type State int32

const (
	StateClosed   State = iota // normal operation, requests pass through
	StateHalfOpen              // testing whether the dependency has recovered
	StateOpen                  // failing fast
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Breaker implements the circuit breaker pattern for fault tolerance.
type Breaker struct {
	name              string
	maxFailures       int32
	resetTimeout      time.Duration
	halfOpenSuccess   int32
	state             int32
	failures          int32
	lastFailureTime   int64
	halfOpenSuccesses int32
}

// New creates a breaker starting in the closed state.
func New(name string, maxFailures int32, resetTimeout time.Duration, halfOpenSuccess int32) *Breaker {
	return &Breaker{
		name:            name,
		maxFailures:     maxFailures,
		resetTimeout:    resetTimeout,
		halfOpenSuccess: halfOpenSuccess,
	}
}

// Call executes fn with circuit breaker protection.
func (cb *Breaker) Call(fn func() error) error {
	if !cb.canExecute() {
		return ErrCircuitOpen
	}

	err := fn()
	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *Breaker) canExecute() bool {
	switch State(atomic.LoadInt32(&cb.state)) {
	case StateClosed:
		return true
	case StateOpen:
		last := atomic.LoadInt64(&cb.lastFailureTime)
		if time.Since(time.Unix(0, last)) > cb.resetTimeout {
			if atomic.CompareAndSwapInt32(&cb.state, int32(StateOpen), int32(StateHalfOpen)) {
				atomic.StoreInt32(&cb.halfOpenSuccesses, 0)
				log.For("resilience.breaker").Sugar().Infof("%s: open -> half-open", cb.name)
			}
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *Breaker) recordFailure() {
	state := State(atomic.LoadInt32(&cb.state))
	failures := atomic.AddInt32(&cb.failures, 1)
	atomic.StoreInt64(&cb.lastFailureTime, time.Now().UnixNano())

	switch state {
	case StateClosed:
		if failures >= cb.maxFailures {
			if atomic.CompareAndSwapInt32(&cb.state, int32(StateClosed), int32(StateOpen)) {
				log.For("resilience.breaker").Sugar().Warnf("%s: closed -> open after %d failures", cb.name, failures)
			}
		}
	case StateHalfOpen:
		if atomic.CompareAndSwapInt32(&cb.state, int32(StateHalfOpen), int32(StateOpen)) {
			atomic.StoreInt32(&cb.failures, 0)
			log.For("resilience.breaker").Sugar().Warnf("%s: half-open -> open", cb.name)
		}
	}
}

func (cb *Breaker) recordSuccess() {
	switch State(atomic.LoadInt32(&cb.state)) {
	case StateClosed:
		atomic.StoreInt32(&cb.failures, 0)
	case StateHalfOpen:
		successes := atomic.AddInt32(&cb.halfOpenSuccesses, 1)
		if successes >= cb.halfOpenSuccess {
			if atomic.CompareAndSwapInt32(&cb.state, int32(StateHalfOpen), int32(StateClosed)) {
				atomic.StoreInt32(&cb.failures, 0)
				atomic.StoreInt32(&cb.halfOpenSuccesses, 0)
				log.For("resilience.breaker").Sugar().Infof("%s: half-open -> closed", cb.name)
			}
		}
	}
}

// State returns the current breaker state.
func (cb *Breaker) State() State { return State(atomic.LoadInt32(&cb.state)) }

// Failures returns the current consecutive-failure count.
func (cb *Breaker) Failures() int32 { return atomic.LoadInt32(&cb.failures) }

// RetryConfig holds retry-with-backoff parameters and an optional breaker.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Breaker      *Breaker
}

// DefaultRetryConfig returns sane defaults matching the §6 retry policy
// surface (retry.max_attempts, retry.backoff_initial, retry.backoff_cap).
func DefaultRetryConfig(name string) RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Breaker:      New(name, 5, 30*time.Second, 2),
	}
}

// WithBackoff executes fn with exponential backoff, honoring ctx
// cancellation and an optional circuit breaker.
func WithBackoff(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if cfg.Breaker != nil && !cfg.Breaker.canExecute() {
			return fmt.Errorf("%s: %w", cfg.Breaker.name, ErrCircuitOpen)
		}

		err := fn(ctx)
		if err == nil {
			if cfg.Breaker != nil {
				cfg.Breaker.recordSuccess()
			}
			return nil
		}
		lastErr = err
		if cfg.Breaker != nil {
			cfg.Breaker.recordFailure()
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}
