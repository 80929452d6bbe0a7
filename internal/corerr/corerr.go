// Package corerr defines the error taxonomy shared across the clearing
// core: validation, idempotency replay, transient infra, business
// rejection, invariant violation, and timeout. Callers classify errors
// with errors.Is/errors.As against the sentinel Kind values instead of
// inspecting strings.
package corerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and retry policy purposes.
type Kind int

const (
	// KindValidation marks bad input surfaced synchronously, never retried.
	KindValidation Kind = iota
	// KindIdempotencyReplay marks a stored response being replayed; not
	// a failure from the caller's perspective.
	KindIdempotencyReplay
	// KindTransientInfra marks a failure expected to clear with retry
	// (store timeout, bus unavailable, bank adapter timeout).
	KindTransientInfra
	// KindBusinessReject marks a final, non-retryable rejection that
	// must run compensation (compliance/risk reject, insufficient
	// balance, window closed, circuit breaker open).
	KindBusinessReject
	// KindInvariantViolation marks a fatal internal contradiction
	// (graph asymmetry, negative available balance, snapshot mismatch).
	// Never silently swallowed.
	KindInvariantViolation
	// KindTimeout marks an operation that exceeded its deadline; treated
	// as transient until the retry cap, then escalated by the caller.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindIdempotencyReplay:
		return "idempotency_replay"
	case KindTransientInfra:
		return "transient_infra"
	case KindBusinessReject:
		return "business_reject"
	case KindInvariantViolation:
		return "invariant_violation"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carried through the core. Reason is
// a stable, caller-facing code (e.g. "WindowClosed", "RejectedRisk");
// Err, when present, is the underlying cause wrapped for %w.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, corerr.Validation) style sentinel comparison
// by Kind, ignoring Reason/Err.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Sentinels for errors.Is comparisons against a specific Kind without a
// particular Reason.
var (
	Validation         = &Error{Kind: KindValidation}
	IdempotencyReplay  = &Error{Kind: KindIdempotencyReplay}
	TransientInfra     = &Error{Kind: KindTransientInfra}
	BusinessReject     = &Error{Kind: KindBusinessReject}
	InvariantViolation = &Error{Kind: KindInvariantViolation}
	Timeout            = &Error{Kind: KindTimeout}
)

// KindOf returns the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
