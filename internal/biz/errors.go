package biz

import (
	"errors"
	"fmt"
	"time"
)

// CircuitOpenError is returned when a call is blocked because its circuit is
// OPEN and the reset window has not elapsed. The protected call was never
// invoked; the caller decides its own retry/backoff policy.
type CircuitOpenError struct {
	CircuitID  string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %s is open: retry after %s", e.CircuitID, e.RetryAfter)
}

// CircuitTimeoutError is returned when the protected call exceeded its
// timeout. Counted as a failure for threshold purposes; the callee is not
// cancelled, the guard merely stops waiting.
type CircuitTimeoutError struct {
	CircuitID string
	Timeout   time.Duration
}

// Error implements the error interface.
func (e *CircuitTimeoutError) Error() string {
	return fmt.Sprintf("circuit %s: call exceeded timeout of %s", e.CircuitID, e.Timeout)
}

// IsCircuitOpen reports whether err is a fast-fail rejection from an OPEN circuit.
func IsCircuitOpen(err error) bool {
	var e *CircuitOpenError
	return errors.As(err, &e)
}

// IsCircuitTimeout reports whether err is a guard-side call timeout.
func IsCircuitTimeout(err error) bool {
	var e *CircuitTimeoutError
	return errors.As(err, &e)
}
