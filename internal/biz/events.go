package biz

import (
	"sync"

	"FuseBox/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// EventBus fans circuit.state.changed events out to registered consumers over
// buffered channels. Publish never blocks: a subscriber that falls behind its
// buffer loses events (with a warning) rather than stalling the breaker.
type EventBus struct {
	mu     sync.Mutex
	subs   []chan model.StateChangedEvent
	closed bool
	logger *log.Helper
}

// NewEventBus creates an event bus for state-change notifications.
func NewEventBus(logger log.Logger) *EventBus {
	return &EventBus{
		logger: log.NewHelper(logger),
	}
}

// Subscribe registers a consumer and returns its receive channel. The channel
// is closed when the bus shuts down.
func (b *EventBus) Subscribe(buffer int) <-chan model.StateChangedEvent {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan model.StateChangedEvent, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers an event to every subscriber without blocking.
func (b *EventBus) Publish(ev model.StateChangedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warnw("event bus subscriber buffer full, dropping event",
				"circuit_id", ev.CircuitID,
				"new_state", ev.NewState.String())
		}
	}
}

// Close shuts the bus down and closes every subscriber channel.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
