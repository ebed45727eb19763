package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// EventKind distinguishes plain guild chatter from moderation actions.
type EventKind string

const (
	KindMessage EventKind = "message"
	KindAction  EventKind = "action"
)

// Event is one importance-tagged guild observation flowing from a channel
// to the memory pipeline. Classification happens on the channel side; the
// memory subsystem consumes the tags as-is.
type Event struct {
	Kind       EventKind
	GuildID    string
	ChannelID  string
	SenderID   string
	SenderName string
	Content    string
	Importance float64
	Sentiment  string
	Timestamp  time.Time
}

// EventBus decouples channel callbacks from the ingest loop with a bounded
// buffer. When the buffer stays full past a short grace period the event is
// dropped and counted; memory capture is best effort.
type EventBus struct {
	events  chan Event
	closed  bool
	dropped atomic.Uint64
	mu      sync.RWMutex
}

const publishTimeout = 100 * time.Millisecond

func NewEventBus() *EventBus {
	return &EventBus{
		events: make(chan Event, 100),
	}
}

func (b *EventBus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	select {
	case b.events <- ev:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.events <- ev:
		case <-timer.C:
			b.dropped.Add(1)
		}
	}
}

// Next blocks for the next event; ok is false once the bus is closed and
// drained, or the context ends.
func (b *EventBus) Next(ctx context.Context) (Event, bool) {
	select {
	case ev, ok := <-b.events:
		if !ok {
			return Event{}, false
		}
		return ev, true
	case <-ctx.Done():
		return Event{}, false
	}
}

func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.events)
}

func (b *EventBus) Dropped() uint64 {
	return b.dropped.Load()
}
