package data

import (
	"time"

	"FuseBox/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// LogMetricsSink implements biz.MetricsSink by emitting structured log records.
// The metrics collaborator contract is fire-and-forget; a real exporter can
// replace this implementation behind the same interface.
type LogMetricsSink struct {
	logger *log.Helper
}

// NewLogMetricsSink creates a log-backed metrics sink.
func NewLogMetricsSink(logger log.Logger) *LogMetricsSink {
	return &LogMetricsSink{
		logger: log.NewHelper(logger),
	}
}

// RecordCircuitSuccess records one successful protected call.
func (s *LogMetricsSink) RecordCircuitSuccess(circuitID string, elapsed time.Duration) {
	s.logger.Debugw("circuit call succeeded",
		"circuit_id", circuitID,
		"elapsed_ms", elapsed.Milliseconds())
}

// RecordCircuitFailure records one failed protected call.
func (s *LogMetricsSink) RecordCircuitFailure(circuitID string, reason string) {
	s.logger.Debugw("circuit call failed",
		"circuit_id", circuitID,
		"reason", reason)
}

// RecordCircuitStateChange records a transition.
func (s *LogMetricsSink) RecordCircuitStateChange(circuitID string, oldState, newState model.CircuitState) {
	s.logger.Infow("circuit state changed",
		"circuit_id", circuitID,
		"old_state", oldState.String(),
		"new_state", newState.String())
}

// RecordCircuitMetrics records a periodic health snapshot.
func (s *LogMetricsSink) RecordCircuitMetrics(snapshot *model.CircuitSnapshot) {
	s.logger.Infow("circuit health snapshot",
		"circuit_id", snapshot.CircuitID,
		"state", snapshot.State.String(),
		"success_rate", snapshot.SuccessRate,
		"avg_response_time_ms", snapshot.AvgResponseTimeMs,
		"total_calls", snapshot.TotalCalls,
		"store_degraded", snapshot.StoreDegraded)
}
