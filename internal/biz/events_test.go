package biz

import (
	"os"
	"testing"
	"time"

	"FuseBox/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(circuitID string) model.StateChangedEvent {
	return model.StateChangedEvent{
		CircuitID: circuitID,
		OldState:  model.StateClosed,
		NewState:  model.StateOpen,
		At:        time.Now(),
	}
}

func TestEventBus_PublishFansOutToAllSubscribers(t *testing.T) {
	bus := NewEventBus(log.NewStdLogger(os.Stdout))
	defer bus.Close()

	a := bus.Subscribe(4)
	b := bus.Subscribe(4)

	bus.Publish(testEvent("payments"))

	for _, ch := range []<-chan model.StateChangedEvent{a, b} {
		ev := <-ch
		assert.Equal(t, "payments", ev.CircuitID)
		assert.Equal(t, model.StateOpen, ev.NewState)
	}
}

func TestEventBus_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewEventBus(log.NewStdLogger(os.Stdout))
	defer bus.Close()

	slow := bus.Subscribe(1)
	fast := bus.Subscribe(4)

	// second publish overflows the slow subscriber's buffer; Publish must
	// still return immediately and the fast subscriber gets both events
	bus.Publish(testEvent("first"))
	bus.Publish(testEvent("second"))

	assert.Equal(t, "first", (<-slow).CircuitID)
	select {
	case ev := <-slow:
		t.Fatalf("slow subscriber should have dropped the overflow event, got %q", ev.CircuitID)
	default:
	}

	assert.Equal(t, "first", (<-fast).CircuitID)
	assert.Equal(t, "second", (<-fast).CircuitID)
}

func TestEventBus_CloseClosesSubscriberChannels(t *testing.T) {
	bus := NewEventBus(log.NewStdLogger(os.Stdout))
	ch := bus.Subscribe(0)

	bus.Close()
	bus.Close() // idempotent

	_, open := <-ch
	assert.False(t, open)

	// publishing and subscribing after close are safe no-ops
	bus.Publish(testEvent("late"))
	late := bus.Subscribe(4)
	_, open = <-late
	require.False(t, open)
}
