package biz

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
)

// RecoverySweeper 周期性恢复扫描任务
// 执行频率：每个 monitoring_period 执行一次（由 cron 调度）
// 没有流量的 OPEN 电路只能靠它转入 HALF_OPEN，否则会永远保持 OPEN
type RecoverySweeper struct {
	breaker *CircuitBreakerUsecase
	logger  *log.Helper
}

// NewRecoverySweeper 创建恢复扫描任务
func NewRecoverySweeper(breaker *CircuitBreakerUsecase, logger log.Logger) *RecoverySweeper {
	return &RecoverySweeper{
		breaker: breaker,
		logger:  log.NewHelper(logger),
	}
}

// SweepStaleCircuits moves every OPEN circuit whose reset window has elapsed
// into HALF_OPEN, after reconciling the local mirror with the shared store.
func (t *RecoverySweeper) SweepStaleCircuits(ctx context.Context) error {
	moved := t.breaker.sweepStale(ctx)

	if moved == 0 {
		t.logger.Debug("recovery sweep: no stale open circuits")
		return nil
	}

	t.logger.Infow("recovery sweep completed", "circuits_probing", moved)
	return nil
}
