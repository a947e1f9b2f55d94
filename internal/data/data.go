// Package data provides data access layer implementations.
// It handles the shared circuit state store and outbound collaborators.
package data

import (
	"FuseBox/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewRedisClient,
	NewMySQLClient,
	NewCircuitStore,
	NewAuditLogger,
	NewAlertService,
	NewLogMetricsSink,
)

// Data contains all data layer dependencies.
type Data struct {
	// redisClient holds the shared circuit state store connection
	redisClient *redis.Client
	// db is the optional audit database
	db *gorm.DB
}

// NewData creates a new Data instance with all data layer dependencies.
// Redis or MySQL connection failure does not prevent application startup
// (graceful degradation).
func NewData(_ *conf.Data, logger log.Logger, rdb *redis.Client, db *gorm.DB) (*Data, func(), error) {
	helper := log.NewHelper(logger)

	if rdb == nil {
		helper.Warn("Redis client is nil, circuit state will not be shared across processes")
	}
	if db == nil {
		helper.Warn("audit database is nil, transition audit trail will be log-only")
	}

	d := &Data{
		redisClient: rdb,
		db:          db,
	}

	cleanup := func() {
		helper.Info("closing the data resources")
		// Redis and MySQL cleanup are handled by their own cleanup functions,
		// which are called automatically by Wire
	}

	return d, cleanup, nil
}

// GetRedisClient returns the Redis client for advanced operations.
func (d *Data) GetRedisClient() *redis.Client {
	return d.redisClient
}
