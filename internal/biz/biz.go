// Package biz contains business logic layer implementations.
// This layer holds the circuit breaker core: the execution guard, the state
// transition engine, and the background recovery/reporting tasks.
package biz

import (
	"FuseBox/internal/data"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewEventBus,
	NewCircuitBreakerUsecase,
	NewRecoverySweeper,
	NewStatsReporter,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(CircuitStore), new(*data.CircuitStoreRepo)),
	wire.Bind(new(AlertService), new(*data.WebhookAlertService)),
	wire.Bind(new(MetricsSink), new(*data.LogMetricsSink)),
	wire.Bind(new(AuditLogger), new(*data.AuditLoggerImpl)),
)
