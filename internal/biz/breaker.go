package biz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"FuseBox/internal/conf"
	"FuseBox/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// ProtectedCall is the opaque downstream invocation wrapped by the breaker.
// The context is passed through unchanged; cancelling the callee on timeout
// is the caller's responsibility.
type ProtectedCall func(ctx context.Context) (interface{}, error)

// circuit is the per-circuit entry in the local registry mirror: last-known
// state plus the process-scoped stats accumulator. Owned exclusively by one
// usecase, guarded by its mutex, never shared.
type circuit struct {
	state          model.CircuitState
	stats          model.CircuitStats
	probeSuccesses int32
	changedAt      time.Time
}

// openedAt is the reference point for the reset window of an OPEN circuit.
func (c *circuit) openedAt() time.Time {
	if !c.stats.LastFailureAt.IsZero() {
		return c.stats.LastFailureAt
	}
	return c.changedAt
}

// transition is a decided state change whose side effects (store write, event
// publish, alert, metric, audit row) still have to run. Side effects happen
// outside the registry lock, strictly after the stats update that caused them.
type transition struct {
	circuitID string
	oldState  model.CircuitState
	newState  model.CircuitState
	at        time.Time
	reason    string
	stats     model.CircuitStats
}

// CircuitBreakerUsecase implements the execution guard and the state
// transition engine over an injected registry. Multiple independent breaker
// instances can coexist in one process; nothing here is package-global.
//
// Threshold counters are per-instance: the shared store carries the
// authoritative state flag (which fast-fail correctness depends on) plus a
// best-effort stats flush, while each process decides OPEN/CLOSED from its own
// counters. Cross-process counter drift is accepted; the sweeper reconciles
// state within one monitoring period.
type CircuitBreakerUsecase struct {
	store   CircuitStore
	alerts  AlertService
	metrics MetricsSink
	audit   AuditLogger
	bus     *EventBus

	defaults    model.BreakerConfig
	flushOnCall bool

	mu            sync.Mutex
	circuits      map[string]*circuit
	storeDegraded bool

	// now is a test seam for the state machine clock. Response times are
	// still measured with the wall clock.
	now    func() time.Time
	logger *log.Helper
}

// NewCircuitBreakerUsecase creates a breaker and seeds its registry from the
// shared store (state only; local stats start at zero on every restart).
func NewCircuitBreakerUsecase(
	c *conf.Breaker,
	store CircuitStore,
	alerts AlertService,
	metrics MetricsSink,
	audit AuditLogger,
	bus *EventBus,
	logger log.Logger,
) (*CircuitBreakerUsecase, error) {
	defaults := model.BreakerConfig{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		CallTimeout:      c.CallTimeout.AsDuration(),
		MonitoringPeriod: c.MonitoringPeriod.AsDuration(),
		ResetTimeout:     c.ResetTimeout.AsDuration(),
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid breaker defaults: %w", err)
	}

	uc := &CircuitBreakerUsecase{
		store:       store,
		alerts:      alerts,
		metrics:     metrics,
		audit:       audit,
		bus:         bus,
		defaults:    defaults,
		flushOnCall: c.FlushOnCall,
		circuits:    make(map[string]*circuit),
		now:         time.Now,
		logger:      log.NewHelper(logger),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	uc.bootstrap(ctx)

	return uc, nil
}

// bootstrap seeds the local mirror from the store. Store failure here is not
// fatal: circuits are created lazily on first execution anyway.
func (uc *CircuitBreakerUsecase) bootstrap(ctx context.Context) {
	ids, err := uc.store.ListCircuitIDs(ctx)
	if err != nil {
		uc.logger.Warnf("failed to enumerate circuits from store (degraded mode): %v", err)
		uc.setStoreDegraded(true)
		return
	}

	seeded := 0
	for _, id := range ids {
		state, changedAt, err := uc.store.GetState(ctx, id)
		if err != nil || state == "" {
			if err != nil {
				uc.logger.Warnf("failed to read state for circuit %s during bootstrap: %v", id, err)
			}
			continue
		}

		uc.mu.Lock()
		uc.circuits[id] = newMirroredCircuit(state, changedAt)
		uc.mu.Unlock()
		seeded++
	}

	uc.logger.Infow("circuit registry bootstrapped from store",
		"known_circuits", len(ids),
		"seeded", seeded)
}

// newMirroredCircuit builds a registry entry for a state adopted from the
// store. Stats start at zero; only LastFailureAt is back-filled for OPEN
// circuits so the reset window measures from the store's own timestamp.
func newMirroredCircuit(state model.CircuitState, changedAt time.Time) *circuit {
	c := &circuit{state: state, changedAt: changedAt}
	if state == model.StateOpen {
		c.stats.LastFailureAt = changedAt
	}
	return c
}

// Execute runs one protected call under the circuit identified by circuitID.
//
// OPEN circuits fail fast with *CircuitOpenError without invoking the call.
// An OPEN circuit whose reset window has elapsed transitions to HALF_OPEN and
// admits the call as a probe. The call is raced against the effective timeout;
// a timeout counts as a failure and surfaces *CircuitTimeoutError, any call
// error passes through to the caller unchanged after being recorded.
func (uc *CircuitBreakerUsecase) Execute(ctx context.Context, circuitID string, call ProtectedCall, override *model.ConfigOverride) (interface{}, error) {
	if circuitID == "" {
		return nil, fmt.Errorf("circuit id must not be empty")
	}
	if call == nil {
		return nil, fmt.Errorf("protected call must not be nil")
	}

	cfg, err := uc.defaults.Merge(override)
	if err != nil {
		return nil, err
	}

	if err := uc.admit(ctx, circuitID, cfg); err != nil {
		return nil, err
	}

	value, callErr, elapsed, timedOut := raceCall(ctx, call, cfg.CallTimeout)

	if timedOut {
		terr := &CircuitTimeoutError{CircuitID: circuitID, Timeout: cfg.CallTimeout}
		uc.recordFailure(ctx, circuitID, cfg, terr.Error(), elapsed)
		return nil, terr
	}
	if callErr != nil {
		uc.recordFailure(ctx, circuitID, cfg, callErr.Error(), elapsed)
		return nil, callErr
	}

	uc.recordSuccess(ctx, circuitID, cfg, elapsed)
	return value, nil
}

// GetState returns the last-known state for a circuit. Local mirror first,
// store fallback on miss; a circuit nobody has seen is CLOSED.
func (uc *CircuitBreakerUsecase) GetState(ctx context.Context, circuitID string) model.CircuitState {
	uc.mu.Lock()
	if c, ok := uc.circuits[circuitID]; ok {
		state := c.state
		uc.mu.Unlock()
		return state
	}
	uc.mu.Unlock()

	state, _, err := uc.store.GetState(ctx, circuitID)
	if err != nil {
		uc.logger.Warnf("failed to read state for circuit %s (degraded mode): %v", circuitID, err)
		uc.setStoreDegraded(true)
		return model.StateClosed
	}
	if state == "" {
		return model.StateClosed
	}
	return state
}

// Snapshots returns the current health view of every known circuit, ordered
// by circuit id.
func (uc *CircuitBreakerUsecase) Snapshots() []*model.CircuitSnapshot {
	uc.mu.Lock()
	snapshots := make([]*model.CircuitSnapshot, 0, len(uc.circuits))
	for id, c := range uc.circuits {
		snapshots = append(snapshots, &model.CircuitSnapshot{
			CircuitID:         id,
			State:             c.state,
			SuccessRate:       c.stats.SuccessRate(),
			AvgResponseTimeMs: c.stats.AvgResponseTimeMs(),
			TotalCalls:        c.stats.TotalResponses,
			LastError:         c.stats.LastError,
			StoreDegraded:     uc.storeDegraded,
		})
	}
	uc.mu.Unlock()

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CircuitID < snapshots[j].CircuitID
	})
	return snapshots
}

// Snapshot returns the health view of one circuit, or false if unknown.
func (uc *CircuitBreakerUsecase) Snapshot(circuitID string) (*model.CircuitSnapshot, bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	c, ok := uc.circuits[circuitID]
	if !ok {
		return nil, false
	}
	return &model.CircuitSnapshot{
		CircuitID:         circuitID,
		State:             c.state,
		SuccessRate:       c.stats.SuccessRate(),
		AvgResponseTimeMs: c.stats.AvgResponseTimeMs(),
		TotalCalls:        c.stats.TotalResponses,
		LastError:         c.stats.LastError,
		StoreDegraded:     uc.storeDegraded,
	}, true
}

// ForceClose is the admin reset: the circuit goes CLOSED and every counter is
// zeroed, regardless of its current state. The circuit itself is never
// deleted.
func (uc *CircuitBreakerUsecase) ForceClose(ctx context.Context, circuitID string, note string) {
	uc.mu.Lock()
	c := uc.ensureLocked(ctx, circuitID)
	c.stats = model.CircuitStats{}
	c.probeSuccesses = 0
	t := uc.transitionLocked(c, circuitID, model.StateClosed, "forced reset")
	stats := c.stats
	uc.mu.Unlock()

	if t != nil {
		uc.applyTransition(ctx, t)
	} else {
		// Already CLOSED: still persist the zeroed counters.
		uc.flushStats(ctx, circuitID, stats)
	}
	uc.audit.LogForcedReset(ctx, circuitID, note)
	uc.logger.Infow("circuit force-reset", "circuit_id", circuitID, "note", note)
}

// admit decides whether the call may proceed. It performs the lazy
// OPEN → HALF_OPEN transition when the reset window has elapsed.
func (uc *CircuitBreakerUsecase) admit(ctx context.Context, circuitID string, cfg model.BreakerConfig) error {
	uc.mu.Lock()
	c := uc.ensureLocked(ctx, circuitID)

	var t *transition
	if c.state == model.StateOpen {
		elapsed := uc.now().Sub(c.openedAt())
		if elapsed < cfg.ResetTimeout {
			retry := cfg.ResetTimeout - elapsed
			uc.mu.Unlock()
			return &CircuitOpenError{CircuitID: circuitID, RetryAfter: retry}
		}
		t = uc.transitionLocked(c, circuitID, model.StateHalfOpen, "reset timeout elapsed, admitting probe")
	}
	uc.mu.Unlock()

	if t != nil {
		uc.applyTransition(ctx, t)
	}
	return nil
}

// recordSuccess updates the accumulator and decides any HALF_OPEN → CLOSED
// transition. Recording happens strictly after the call settled; the
// transition decision strictly after the stats update (both under one lock).
func (uc *CircuitBreakerUsecase) recordSuccess(ctx context.Context, circuitID string, cfg model.BreakerConfig, elapsed time.Duration) {
	uc.mu.Lock()
	c := uc.ensureLocked(ctx, circuitID)

	c.stats.Successes++
	c.stats.TotalResponses++
	c.stats.ResponseTimeSumMs += uint64(elapsed.Milliseconds()) // #nosec G115 -- elapsed is non-negative
	c.stats.LastSuccessAt = uc.now()

	var t *transition
	if c.state == model.StateHalfOpen {
		c.probeSuccesses++
		if c.probeSuccesses >= cfg.SuccessThreshold {
			t = uc.transitionLocked(c, circuitID, model.StateClosed, "probe succeeded, dependency recovered")
		}
	}
	stats := c.stats
	uc.mu.Unlock()

	uc.metrics.RecordCircuitSuccess(circuitID, elapsed)

	if t != nil {
		uc.applyTransition(ctx, t)
	} else if uc.flushOnCall {
		uc.flushStats(ctx, circuitID, stats)
	}
}

// recordFailure updates the accumulator and decides CLOSED → OPEN (threshold)
// or HALF_OPEN → OPEN (any probe failure). Thrown errors, rejections and
// guard-side timeouts all land here uniformly; reason keeps the distinction
// for diagnostics.
func (uc *CircuitBreakerUsecase) recordFailure(ctx context.Context, circuitID string, cfg model.BreakerConfig, reason string, elapsed time.Duration) {
	uc.mu.Lock()
	c := uc.ensureLocked(ctx, circuitID)

	c.stats.Failures++
	c.stats.TotalResponses++
	c.stats.ResponseTimeSumMs += uint64(elapsed.Milliseconds()) // #nosec G115 -- elapsed is non-negative
	c.stats.LastFailureAt = uc.now()
	c.stats.LastError = reason

	var t *transition
	switch c.state {
	case model.StateClosed:
		if c.stats.Failures >= uint64(cfg.FailureThreshold) { // #nosec G115 -- threshold validated > 0
			t = uc.transitionLocked(c, circuitID, model.StateOpen, "failure threshold reached")
		}
	case model.StateHalfOpen:
		t = uc.transitionLocked(c, circuitID, model.StateOpen, "probe failed")
	}
	stats := c.stats
	uc.mu.Unlock()

	uc.metrics.RecordCircuitFailure(circuitID, reason)

	if t != nil {
		uc.applyTransition(ctx, t)
	} else if uc.flushOnCall {
		uc.flushStats(ctx, circuitID, stats)
	}
}

// ensureLocked returns the registry entry for a circuit, creating it on first
// sight. A miss falls back to a store read so a circuit opened by another
// process fast-fails here too; store failure degrades to a fresh CLOSED entry.
// Caller must hold uc.mu.
func (uc *CircuitBreakerUsecase) ensureLocked(ctx context.Context, circuitID string) *circuit {
	if c, ok := uc.circuits[circuitID]; ok {
		return c
	}

	state, changedAt, err := uc.store.GetState(ctx, circuitID)
	if err != nil {
		uc.logger.Warnf("failed to read state for circuit %s (degraded mode): %v", circuitID, err)
		uc.storeDegraded = true
		state = ""
	}

	var c *circuit
	if state == "" {
		// implicit creation: CLOSED with zeroed stats
		c = &circuit{state: model.StateClosed, changedAt: uc.now()}
	} else {
		c = newMirroredCircuit(state, changedAt)
	}
	uc.circuits[circuitID] = c
	return c
}

// transitionLocked flips the state and returns the pending side effects, or
// nil when the circuit is already in the target state (idempotent: repeat
// transitions never re-fire notifications). Caller must hold uc.mu.
func (uc *CircuitBreakerUsecase) transitionLocked(c *circuit, circuitID string, to model.CircuitState, reason string) *transition {
	if c.state == to {
		return nil
	}

	old := c.state
	c.state = to
	c.changedAt = uc.now()

	switch to {
	case model.StateHalfOpen:
		// probe successes count from zero each time we enter HALF_OPEN
		c.probeSuccesses = 0
	case model.StateClosed:
		// only a successful probe run (or a forced reset) clears failures,
		// so one stray failure long after recovery cannot reopen the circuit
		c.stats.Failures = 0
	}

	return &transition{
		circuitID: circuitID,
		oldState:  old,
		newState:  to,
		at:        c.changedAt,
		reason:    reason,
		stats:     c.stats,
	}
}

// applyTransition runs the side effects of a decided transition: authoritative
// store write with an eager stats flush, then the fire-and-forget fan-out.
func (uc *CircuitBreakerUsecase) applyTransition(ctx context.Context, t *transition) {
	if err := uc.store.SetState(ctx, t.circuitID, t.newState, t.at); err != nil {
		uc.logger.Warnf("failed to persist state for circuit %s (degraded mode): %v", t.circuitID, err)
		uc.setStoreDegraded(true)
	} else {
		uc.setStoreDegraded(false)
	}
	uc.flushStats(ctx, t.circuitID, t.stats)

	uc.bus.Publish(model.StateChangedEvent{
		CircuitID: t.circuitID,
		OldState:  t.oldState,
		NewState:  t.newState,
		At:        t.at,
	})
	uc.metrics.RecordCircuitStateChange(t.circuitID, t.oldState, t.newState)
	uc.audit.LogStateChange(ctx, t.circuitID, t.oldState, t.newState, t.reason)

	alert := &model.SystemAlert{
		Component: "circuit-breaker",
		Type:      alertTypeFor(t.newState),
		CircuitID: t.circuitID,
		OldState:  t.oldState,
		NewState:  t.newState,
		At:        t.at,
	}
	// alert delivery may do network I/O, keep it off the execution path
	go func() {
		_ = uc.alerts.SendSystemAlert(context.Background(), alert)
	}()

	uc.logger.Infow("circuit transition",
		"circuit_id", t.circuitID,
		"old_state", t.oldState.String(),
		"new_state", t.newState.String(),
		"reason", t.reason)
}

// flushStats writes the accumulator to the store, downgrading failures to
// degraded-mode warnings: bookkeeping must never fail a call.
func (uc *CircuitBreakerUsecase) flushStats(ctx context.Context, circuitID string, stats model.CircuitStats) {
	if err := uc.store.FlushStats(ctx, circuitID, stats); err != nil {
		uc.logger.Warnf("failed to flush stats for circuit %s (degraded mode): %v", circuitID, err)
		uc.setStoreDegraded(true)
		return
	}
	uc.setStoreDegraded(false)
}

func (uc *CircuitBreakerUsecase) setStoreDegraded(degraded bool) {
	uc.mu.Lock()
	if degraded && !uc.storeDegraded {
		uc.logger.Warn("shared store unavailable, breaker running on local state only")
	}
	uc.storeDegraded = degraded
	uc.mu.Unlock()
}

// sweepStale is the recovery sweeper body: refresh the mirror from the store,
// then proactively move stale OPEN circuits to HALF_OPEN so circuits with no
// incoming traffic still recover. Returns the number of circuits transitioned.
func (uc *CircuitBreakerUsecase) sweepStale(ctx context.Context) int {
	uc.refreshMirror(ctx)

	now := uc.now()
	var pending []*transition

	uc.mu.Lock()
	for id, c := range uc.circuits {
		if c.state != model.StateOpen {
			continue
		}
		if now.Sub(c.openedAt()) < uc.defaults.ResetTimeout {
			continue
		}
		if t := uc.transitionLocked(c, id, model.StateHalfOpen, "recovery sweep: reset timeout elapsed"); t != nil {
			pending = append(pending, t)
		}
	}
	uc.mu.Unlock()

	for _, t := range pending {
		uc.applyTransition(ctx, t)
	}
	return len(pending)
}

// refreshMirror reconciles the local mirror with the store: unseen circuits
// are adopted, and a remote transition newer than ours wins silently (no
// notifications for transitions another process already announced).
func (uc *CircuitBreakerUsecase) refreshMirror(ctx context.Context) {
	ids, err := uc.store.ListCircuitIDs(ctx)
	if err != nil {
		uc.logger.Warnf("sweep: failed to enumerate circuits (degraded mode): %v", err)
		uc.setStoreDegraded(true)
		return
	}

	for _, id := range ids {
		state, changedAt, err := uc.store.GetState(ctx, id)
		if err != nil || state == "" {
			if err != nil {
				uc.logger.Warnf("sweep: failed to read state for circuit %s: %v", id, err)
			}
			continue
		}

		uc.mu.Lock()
		c, ok := uc.circuits[id]
		switch {
		case !ok:
			uc.circuits[id] = newMirroredCircuit(state, changedAt)
		case c.state != state && changedAt.After(c.changedAt):
			c.state = state
			c.changedAt = changedAt
			if state == model.StateHalfOpen {
				c.probeSuccesses = 0
			}
			if state == model.StateOpen && c.stats.LastFailureAt.IsZero() {
				c.stats.LastFailureAt = changedAt
			}
		}
		uc.mu.Unlock()
	}
}

// raceCall runs the protected call against a timeout timer; whichever settles
// first wins. On timeout the callee keeps running unobserved (no cancellation
// signal is sent), the guard just stops waiting.
func raceCall(ctx context.Context, call ProtectedCall, timeout time.Duration) (value interface{}, err error, elapsed time.Duration, timedOut bool) {
	type outcome struct {
		value interface{}
		err   error
	}

	// buffered so the call goroutine never leaks blocked on send
	ch := make(chan outcome, 1)
	start := time.Now()

	go func() {
		v, callErr := call(ctx)
		ch <- outcome{value: v, err: callErr}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		return out.value, out.err, time.Since(start), false
	case <-timer.C:
		return nil, nil, timeout, true
	}
}

// alertTypeFor maps a target state to its notification type.
func alertTypeFor(state model.CircuitState) string {
	switch state {
	case model.StateOpen:
		return model.AlertCircuitOpened
	case model.StateHalfOpen:
		return model.AlertCircuitProbing
	default:
		return model.AlertCircuitRecovered
	}
}
