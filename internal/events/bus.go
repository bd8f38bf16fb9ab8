package events

import (
	"sync"
	"sync/atomic"
)

// subscriberBuffer is the per-subscriber channel capacity
const subscriberBuffer = 16

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	nextID  int
	subs    map[int]subscriber
	dropped atomic.Int64
}

type subscriber struct {
	ch    chan Event
	types map[EventType]bool
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]subscriber)}
}

// Subscribe returns a channel receiving events of the given types (all types
// when none are given) and a function that unsubscribes and closes the channel.
func (b *Bus) Subscribe(types ...EventType) (<-chan Event, func()) {
	sub := subscriber{ch: make(chan Event, subscriberBuffer)}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Publish delivers event to every matching subscriber
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.types != nil && !sub.types[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the current subscriber count
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped due to full buffers
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
