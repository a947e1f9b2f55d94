package model

import (
	"fmt"
	"time"
)

// CircuitState represents the current state of a circuit.
type CircuitState string

const (
	// StateClosed allows all calls through (normal operation)
	StateClosed CircuitState = "CLOSED"

	// StateOpen blocks all calls (fast-fail against a known-bad dependency)
	StateOpen CircuitState = "OPEN"

	// StateHalfOpen admits probe calls to test recovery
	StateHalfOpen CircuitState = "HALF_OPEN"
)

// ParseCircuitState converts a stored string into a CircuitState.
// Returns an error for anything outside the three known states.
func ParseCircuitState(s string) (CircuitState, error) {
	switch CircuitState(s) {
	case StateClosed, StateOpen, StateHalfOpen:
		return CircuitState(s), nil
	default:
		return "", fmt.Errorf("unknown circuit state %q", s)
	}
}

// String returns the string representation of CircuitState
func (s CircuitState) String() string {
	return string(s)
}

// BreakerConfig holds the effective per-circuit configuration.
// All fields must be positive; Validate reports every violation at once.
type BreakerConfig struct {
	// FailureThreshold is the failure count that opens a CLOSED circuit
	FailureThreshold int32
	// SuccessThreshold is the probe success count that closes a HALF_OPEN circuit
	SuccessThreshold int32
	// CallTimeout bounds how long the guard waits for a protected call
	CallTimeout time.Duration
	// MonitoringPeriod is the recovery sweeper cadence
	MonitoringPeriod time.Duration
	// ResetTimeout is how long an OPEN circuit waits before probing
	ResetTimeout time.Duration
}

// ConfigOverride carries optional per-call overrides. A nil field keeps the
// default; set fields win per-field without mutating the shared defaults.
type ConfigOverride struct {
	FailureThreshold *int32
	SuccessThreshold *int32
	CallTimeout      *time.Duration
	ResetTimeout     *time.Duration
}

// Merge returns the effective config for one execution: defaults with any
// override fields applied. The result is validated once, at call time.
func (c BreakerConfig) Merge(o *ConfigOverride) (BreakerConfig, error) {
	merged := c
	if o != nil {
		if o.FailureThreshold != nil {
			merged.FailureThreshold = *o.FailureThreshold
		}
		if o.SuccessThreshold != nil {
			merged.SuccessThreshold = *o.SuccessThreshold
		}
		if o.CallTimeout != nil {
			merged.CallTimeout = *o.CallTimeout
		}
		if o.ResetTimeout != nil {
			merged.ResetTimeout = *o.ResetTimeout
		}
	}
	if err := merged.Validate(); err != nil {
		return BreakerConfig{}, err
	}
	return merged, nil
}

// Validate checks that every threshold and window is positive.
func (c BreakerConfig) Validate() error {
	var bad []string
	if c.FailureThreshold <= 0 {
		bad = append(bad, "failure_threshold")
	}
	if c.SuccessThreshold <= 0 {
		bad = append(bad, "success_threshold")
	}
	if c.CallTimeout <= 0 {
		bad = append(bad, "call_timeout")
	}
	if c.MonitoringPeriod <= 0 {
		bad = append(bad, "monitoring_period")
	}
	if c.ResetTimeout <= 0 {
		bad = append(bad, "reset_timeout")
	}
	if len(bad) > 0 {
		return fmt.Errorf("breaker config fields must be positive: %v", bad)
	}
	return nil
}

// CircuitStats accumulates per-circuit outcome counters for the current
// CLOSED/HALF_OPEN window. Counters only reset when a HALF_OPEN probe run
// closes the circuit (or on an admin force-reset), never per call.
type CircuitStats struct {
	Successes         uint64
	Failures          uint64
	TotalResponses    uint64
	ResponseTimeSumMs uint64
	LastSuccessAt     time.Time
	LastFailureAt     time.Time
	LastError         string
}

// SuccessRate returns successes/totalResponses, defined as 1 for an idle circuit.
func (s CircuitStats) SuccessRate() float64 {
	if s.TotalResponses == 0 {
		return 1
	}
	return float64(s.Successes) / float64(s.TotalResponses)
}

// AvgResponseTimeMs returns the mean response time, 0 for an idle circuit.
func (s CircuitStats) AvgResponseTimeMs() float64 {
	if s.TotalResponses == 0 {
		return 0
	}
	return float64(s.ResponseTimeSumMs) / float64(s.TotalResponses)
}
