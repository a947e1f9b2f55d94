package biz

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
)

// StatsReporter pushes aggregate circuit health snapshots to the metrics
// collaborator on its own cadence (report_interval, independent of the
// sweeper). Best-effort: reporter problems never affect circuit behavior.
type StatsReporter struct {
	breaker *CircuitBreakerUsecase
	metrics MetricsSink
	logger  *log.Helper
}

// NewStatsReporter creates the periodic stats reporting task.
func NewStatsReporter(breaker *CircuitBreakerUsecase, metrics MetricsSink, logger log.Logger) *StatsReporter {
	return &StatsReporter{
		breaker: breaker,
		metrics: metrics,
		logger:  log.NewHelper(logger),
	}
}

// ReportSnapshots emits one health snapshot per known circuit.
func (t *StatsReporter) ReportSnapshots(_ context.Context) error {
	snapshots := t.breaker.Snapshots()
	if len(snapshots) == 0 {
		t.logger.Debug("stats report: no circuits registered")
		return nil
	}

	for _, snapshot := range snapshots {
		t.metrics.RecordCircuitMetrics(snapshot)
	}

	t.logger.Debugw("stats report completed", "circuits", len(snapshots))
	return nil
}
