package dispatch

import "sync"

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped for a subscriber that falls this far behind.
const subscriberBufferSize = 64

// Event describes one finished dispatch.
type Event struct {
	DispatchID string `json:"dispatch_id"`
	Operation  string `json:"operation"`
	EngineKind string `json:"engine_kind"`
	Generation uint64 `json:"generation"`
	Status     string `json:"status"`
	DurationMS int    `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// EventBroker fans dispatch events out to SSE subscribers. It is safe for
// concurrent use.
type EventBroker struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// NewEventBroker creates a new event broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{
		subs: make(map[int]chan Event),
	}
}

// Subscribe returns a channel receiving dispatch events and an unsubscribe
// function.
func (b *EventBroker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBufferSize)
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish sends an event to all subscribers. Events are dropped for
// subscribers whose buffers are full so publishing never blocks a dispatch.
func (b *EventBroker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
