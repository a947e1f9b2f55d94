package biz

import (
	"context"
	"time"

	"FuseBox/internal/model"
)

// CircuitStore is the shared-state contract the breaker needs from its
// bookkeeping store. Implemented in the data layer against Redis; any
// key-value store with per-key atomic get/set and a hash type would do.
//
// Write semantics are plain overwrites (last-writer-wins); the breaker
// tolerates stale reads and duplicate transitions across processes.
type CircuitStore interface {
	// GetState returns the authoritative state and its transition timestamp.
	// An unknown circuit returns an empty state and no error.
	GetState(ctx context.Context, circuitID string) (model.CircuitState, time.Time, error)

	// SetState overwrites the authoritative state plus its timestamp.
	SetState(ctx context.Context, circuitID string, state model.CircuitState, at time.Time) error

	// FlushStats writes the full stats accumulator for a circuit.
	FlushStats(ctx context.Context, circuitID string, stats model.CircuitStats) error

	// GetStats reads the stats accumulator back (zeroed when absent).
	GetStats(ctx context.Context, circuitID string) (model.CircuitStats, error)

	// ListCircuitIDs enumerates every circuit known to the store.
	ListCircuitIDs(ctx context.Context) ([]string, error)
}

// AlertService is the notification collaborator. Fire-and-forget: the breaker
// never blocks on delivery and never propagates delivery errors.
type AlertService interface {
	SendSystemAlert(ctx context.Context, alert *model.SystemAlert) error
}

// MetricsSink is the metrics collaborator. All methods are fire-and-forget.
type MetricsSink interface {
	RecordCircuitSuccess(circuitID string, elapsed time.Duration)
	RecordCircuitFailure(circuitID string, reason string)
	RecordCircuitStateChange(circuitID string, oldState, newState model.CircuitState)
	RecordCircuitMetrics(snapshot *model.CircuitSnapshot)
}

// AuditLogger records circuit lifecycle events for later inspection.
// Implementations must not block the caller.
type AuditLogger interface {
	LogStateChange(ctx context.Context, circuitID string, oldState, newState model.CircuitState, reason string)
	LogForcedReset(ctx context.Context, circuitID string, note string)
}
