package data

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"FuseBox/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// CircuitStoreRepo implements biz.CircuitStore against Redis.
// Following Kratos v2 DDD architecture, the interface is defined in the biz layer.
//
// Key layout per circuit:
//
//	circuit:{id}:state      - current state string (CLOSED/OPEN/HALF_OPEN)
//	circuit:{id}:changed_at - unix-milli timestamp of the last transition
//	circuit:{id}:stats      - hash of cumulative counters
//
// All writes are plain overwrites: state coordination tolerates last-writer-wins
// races, a stale read self-corrects within one sweeper period.
type CircuitStoreRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewCircuitStore creates a new circuit state store repository.
func NewCircuitStore(d *Data, logger log.Logger) *CircuitStoreRepo {
	return &CircuitStoreRepo{
		rdb:    d.GetRedisClient(),
		logger: log.NewHelper(logger),
	}
}

// GetState reads the authoritative state and last-transition timestamp for a
// circuit. Returns an empty state with no error when the circuit is unknown.
func (r *CircuitStoreRepo) GetState(ctx context.Context, circuitID string) (model.CircuitState, time.Time, error) {
	if r.rdb == nil {
		return "", time.Time{}, fmt.Errorf("redis client is nil")
	}

	raw, err := r.rdb.Get(ctx, stateKey(circuitID)).Result()
	if err == redis.Nil {
		return "", time.Time{}, nil // circuit not seen by any process yet
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to get circuit state: %w", err)
	}

	state, err := model.ParseCircuitState(raw)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("corrupt circuit state for %s: %w", circuitID, err)
	}

	changedAt := time.Time{}
	ms, err := r.rdb.Get(ctx, changedAtKey(circuitID)).Int64()
	if err == nil {
		changedAt = time.UnixMilli(ms)
	} else if err != redis.Nil {
		r.logger.Warnf("failed to get changed_at for circuit %s: %v", circuitID, err)
	}

	return state, changedAt, nil
}

// SetState overwrites the authoritative state plus its transition timestamp.
func (r *CircuitStoreRepo) SetState(ctx context.Context, circuitID string, state model.CircuitState, at time.Time) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	// No TTL: circuits persist across restarts, keys are explicitly overwritten
	if err := r.rdb.Set(ctx, stateKey(circuitID), state.String(), 0).Err(); err != nil {
		return fmt.Errorf("failed to set circuit state: %w", err)
	}
	if err := r.rdb.Set(ctx, changedAtKey(circuitID), at.UnixMilli(), 0).Err(); err != nil {
		return fmt.Errorf("failed to set circuit changed_at: %w", err)
	}

	return nil
}

// FlushStats writes the full stats accumulator as a hash overwrite.
func (r *CircuitStoreRepo) FlushStats(ctx context.Context, circuitID string, stats model.CircuitStats) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	fields := map[string]interface{}{
		"successes":            stats.Successes,
		"failures":             stats.Failures,
		"total_responses":      stats.TotalResponses,
		"response_time_sum_ms": stats.ResponseTimeSumMs,
		"last_success_at":      unixMilliOrZero(stats.LastSuccessAt),
		"last_failure_at":      unixMilliOrZero(stats.LastFailureAt),
		"last_error":           stats.LastError,
	}

	if err := r.rdb.HSet(ctx, statsKey(circuitID), fields).Err(); err != nil {
		return fmt.Errorf("failed to flush circuit stats: %w", err)
	}

	return nil
}

// GetStats reads the stats hash back into an accumulator. Missing fields
// (or a missing hash) come back zeroed.
func (r *CircuitStoreRepo) GetStats(ctx context.Context, circuitID string) (model.CircuitStats, error) {
	if r.rdb == nil {
		return model.CircuitStats{}, fmt.Errorf("redis client is nil")
	}

	fields, err := r.rdb.HGetAll(ctx, statsKey(circuitID)).Result()
	if err != nil {
		return model.CircuitStats{}, fmt.Errorf("failed to get circuit stats: %w", err)
	}

	stats := model.CircuitStats{
		Successes:         parseUint(fields["successes"]),
		Failures:          parseUint(fields["failures"]),
		TotalResponses:    parseUint(fields["total_responses"]),
		ResponseTimeSumMs: parseUint(fields["response_time_sum_ms"]),
		LastError:         fields["last_error"],
	}
	if ms := parseUint(fields["last_success_at"]); ms > 0 {
		stats.LastSuccessAt = time.UnixMilli(int64(ms)) // #nosec G115 -- unix-milli fits int64
	}
	if ms := parseUint(fields["last_failure_at"]); ms > 0 {
		stats.LastFailureAt = time.UnixMilli(int64(ms)) // #nosec G115 -- unix-milli fits int64
	}

	return stats, nil
}

// ListCircuitIDs enumerates every circuit known to the shared store.
// Used once at startup to seed the local registry mirror.
func (r *CircuitStoreRepo) ListCircuitIDs(ctx context.Context) ([]string, error) {
	if r.rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	keys, err := r.rdb.Keys(ctx, "circuit:*:state").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list circuit keys: %w", err)
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimSuffix(strings.TrimPrefix(key, "circuit:"), ":state")
		if id != "" {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// stateKey generates the Redis key for a circuit's state.
// Format: circuit:{id}:state
func stateKey(circuitID string) string {
	return fmt.Sprintf("circuit:%s:state", circuitID)
}

// changedAtKey generates the Redis key for a circuit's transition timestamp.
func changedAtKey(circuitID string) string {
	return fmt.Sprintf("circuit:%s:changed_at", circuitID)
}

// statsKey generates the Redis key for a circuit's stats hash.
func statsKey(circuitID string) string {
	return fmt.Sprintf("circuit:%s:stats", circuitID)
}

func parseUint(s string) uint64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func unixMilliOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
