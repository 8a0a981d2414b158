package realtime

import (
	"sync"
	"time"
)

// Event is a change notification fanned out to subscribers.
type Event struct {
	Channel    string    `json:"channel"`
	Payload    string    `json:"payload,omitempty"`
	Resync     bool      `json:"resync,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Broker fans events out to any number of subscribers.
// Slow subscribers drop events instead of blocking the publisher; every event only means "something changed".
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	buffer int
	closed bool
}

// NewBroker builds a broker whose subscriber channels hold buffer events.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 8
	}
	return &Broker{subs: make(map[uint64]chan Event), buffer: buffer}
}

// Subscribe registers a subscriber. The returned function unsubscribes and closes the channel; it is safe to call twice.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers evt to every subscriber without blocking.
func (b *Broker) Publish(evt Event) {
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription; later subscribers receive a closed channel.
func (b *Broker) Close() {
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
