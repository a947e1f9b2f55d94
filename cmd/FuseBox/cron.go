package main

import (
	"context"
	"fmt"
	"time"

	"FuseBox/internal/biz"
	"FuseBox/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// StartBreakerCron 启动熔断器后台定时任务
// 恢复扫描：每个 monitoring_period 执行一次，把超过 reset_timeout 的 OPEN 电路转入 HALF_OPEN
// 指标上报：每个 report_interval 执行一次，推送电路健康快照
func StartBreakerCron(
	sweeper *biz.RecoverySweeper,
	reporter *biz.StatsReporter,
	c *conf.Breaker,
	logger log.Logger,
) (*cron.Cron, func(), error) {
	helper := log.NewHelper(logger)

	cr := cron.New()

	sweepEvery := c.MonitoringPeriod.AsDuration()
	if _, err := cr.AddFunc(fmt.Sprintf("@every %s", sweepEvery), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := sweeper.SweepStaleCircuits(ctx); err != nil {
			helper.Errorw("recovery sweep failed", "error", err)
		}
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to register recovery sweep cron job: %w", err)
	}

	reportEvery := c.ReportInterval.AsDuration()
	if _, err := cr.AddFunc(fmt.Sprintf("@every %s", reportEvery), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := reporter.ReportSnapshots(ctx); err != nil {
			helper.Errorw("stats report failed", "error", err)
		}
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to register stats report cron job: %w", err)
	}

	cr.Start()
	helper.Infow("breaker cron jobs started",
		"sweep_every", sweepEvery.String(),
		"report_every", reportEvery.String())

	cleanup := func() {
		helper.Info("stopping breaker cron jobs")
		<-cr.Stop().Done()
	}

	return cr, cleanup, nil
}
