package biz

import (
	"context"
	"testing"
	"time"

	"FuseBox/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepStaleCircuits_MovesStaleOpenToHalfOpen(t *testing.T) {
	tb := newTestBreaker(t, testBreakerConfig(), newMemStore())
	ctx := context.Background()
	sweeper := NewRecoverySweeper(tb.uc, testLogger())

	calls := 0
	for i := 0; i < 3; i++ {
		_, _ = tb.uc.Execute(ctx, "payments", failingCall(&calls), nil)
	}
	require.Equal(t, model.StateOpen, tb.uc.GetState(ctx, "payments"))

	// reset window (1s) not yet elapsed: sweep is a no-op
	tb.clock.Advance(500 * time.Millisecond)
	require.NoError(t, sweeper.SweepStaleCircuits(ctx))
	assert.Equal(t, model.StateOpen, tb.uc.GetState(ctx, "payments"))

	// past the window: the sweeper probes it even with zero traffic
	tb.clock.Advance(600 * time.Millisecond)
	require.NoError(t, sweeper.SweepStaleCircuits(ctx))
	assert.Equal(t, model.StateHalfOpen, tb.uc.GetState(ctx, "payments"))
	assert.Equal(t, model.StateHalfOpen, tb.store.stateOf("payments"))
}

func TestSweepStaleCircuits_AdoptsCircuitsFromOtherProcesses(t *testing.T) {
	tb := newTestBreaker(t, testBreakerConfig(), newMemStore())
	ctx := context.Background()
	sweeper := NewRecoverySweeper(tb.uc, testLogger())

	// another process opened a circuit this instance has never executed
	openedAt := tb.clock.Now().Add(-2 * time.Second)
	require.NoError(t, tb.store.SetState(ctx, "foreign", model.StateOpen, openedAt))

	require.NoError(t, sweeper.SweepStaleCircuits(ctx))
	assert.Equal(t, model.StateHalfOpen, tb.uc.GetState(ctx, "foreign"))
}

func TestSweepStaleCircuits_RemoteNewerStateWinsSilently(t *testing.T) {
	tb := newTestBreaker(t, testBreakerConfig(), newMemStore())
	ctx := context.Background()
	sweeper := NewRecoverySweeper(tb.uc, testLogger())

	calls := 0
	for i := 0; i < 3; i++ {
		_, _ = tb.uc.Execute(ctx, "payments", failingCall(&calls), nil)
	}
	changesBefore := len(tb.metrics.changes())

	// another process already recovered the circuit with a newer timestamp
	require.NoError(t, tb.store.SetState(ctx, "payments", model.StateClosed, tb.clock.Now().Add(time.Minute)))

	require.NoError(t, sweeper.SweepStaleCircuits(ctx))
	assert.Equal(t, model.StateClosed, tb.uc.GetState(ctx, "payments"))
	// adopting a remote transition re-announces nothing
	assert.Len(t, tb.metrics.changes(), changesBefore)
}

func TestSweepStaleCircuits_StoreDownStillSweepsLocalMirror(t *testing.T) {
	tb := newTestBreaker(t, testBreakerConfig(), newMemStore())
	ctx := context.Background()
	sweeper := NewRecoverySweeper(tb.uc, testLogger())

	calls := 0
	for i := 0; i < 3; i++ {
		_, _ = tb.uc.Execute(ctx, "payments", failingCall(&calls), nil)
	}
	tb.store.setFailing(true)
	tb.clock.Advance(2 * time.Second)

	require.NoError(t, sweeper.SweepStaleCircuits(ctx))
	assert.Equal(t, model.StateHalfOpen, tb.uc.GetState(ctx, "payments"))
}
