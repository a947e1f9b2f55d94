package model

import "time"

// StateChangedEvent is published on the event bus for every circuit transition
type StateChangedEvent struct {
	CircuitID string
	OldState  CircuitState
	NewState  CircuitState
	At        time.Time
}

// SystemAlert is the payload handed to the notification collaborator when a
// circuit changes state. Fire-and-forget: delivery never blocks the breaker.
type SystemAlert struct {
	Component string       `json:"component"`
	Type      string       `json:"type"`
	CircuitID string       `json:"circuit_id"`
	OldState  CircuitState `json:"old_state"`
	NewState  CircuitState `json:"new_state"`
	At        time.Time    `json:"at"`
}

// Alert type constants
const (
	AlertCircuitOpened    = "CIRCUIT_OPENED"
	AlertCircuitProbing   = "CIRCUIT_PROBING"
	AlertCircuitRecovered = "CIRCUIT_RECOVERED"
)

// CircuitSnapshot is the aggregate health view pushed to the metrics
// collaborator by the stats reporter.
type CircuitSnapshot struct {
	CircuitID         string       `json:"circuit_id"`
	State             CircuitState `json:"state"`
	SuccessRate       float64      `json:"success_rate"`
	AvgResponseTimeMs float64      `json:"avg_response_time_ms"`
	TotalCalls        uint64       `json:"total_calls"`
	LastError         string       `json:"last_error,omitempty"`
	// StoreDegraded is set while the shared store is unreachable and the
	// breaker is running on local state only.
	StoreDegraded bool `json:"store_degraded"`
}
