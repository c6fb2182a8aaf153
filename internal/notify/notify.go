// Package notify is the fan-out boundary for "work order changed" events.
// Delivery is fire-and-forget: the core publishes after every durable write
// but never depends on a subscriber receiving anything.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Change classifies what happened to the entity.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Event identifies a changed entity.
type Event struct {
	Kind     string // e.g. "work_order"
	Change   string // "created", "updated", "deleted"
	EntityID string
}

// Publisher is the publish contract the core calls after durable writes.
// Implementations must not block; publishing happens outside locks.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Broadcast fans events out to subscriber channels. Sends are non-blocking;
// a full subscriber buffer drops the event for that subscriber only.
type Broadcast struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewBroadcast() *Broadcast {
	return &Broadcast{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a cancel func. The channel is
// closed on cancel or Close.
func (b *Broadcast) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *Broadcast) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full, drop for this subscriber - DATA LOSS
			log.Warn().
				Str("kind", ev.Kind).
				Str("change", ev.Change).
				Str("entity_id", ev.EntityID).
				Msg("Subscriber channel full, dropping event")
		}
	}
}

// Close closes all subscriber channels.
func (b *Broadcast) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
