package engine

import "sync"

// subscriberBufferSize is the channel buffer for each progress subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// maxClosedTopics is how many finished batches keep their closed marker.
// Older markers are evicted; a subscriber checks the stored batch status
// first, so only a batch that finished moments ago needs one.
const maxClosedTopics = 256

// Event reports one finished task of a running batch.
type Event struct {
	BatchID    string `json:"batch_id"`
	Index      int    `json:"index"` // 1-based
	Success    bool   `json:"success"`
	Backend    string `json:"backend"`
	Error      string `json:"error,omitempty"`
	DurationMS int    `json:"duration_ms"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
}

// Broker fans out per-batch progress events to subscribers.
// It is safe for concurrent use.
//
// Finished batches are retained as closed markers so that late subscribers
// receive a closed channel instead of blocking forever. Only the most recent
// maxClosedTopics markers are kept.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*topic
	closed []string // finished batch IDs, oldest first
}

type topic struct {
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBroker creates a new progress broker.
func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string]*topic),
	}
}

// Subscribe returns a channel that receives progress events for the given
// batch and an unsubscribe function. If the batch has already finished, the
// returned channel is immediately closed.
func (b *Broker) Subscribe(batchID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[batchID]
	if !ok {
		t = &topic{subs: make(map[int]chan Event)}
		b.topics[batchID] = t
	}

	ch := make(chan Event, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends an event to all subscribers of its batch.
// Events are dropped for subscribers whose buffers are full.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[ev.BatchID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close signals that the batch has finished. All subscriber channels are
// closed and future Subscribe calls return a closed channel.
func (b *Broker) Close(batchID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[batchID]
	if !ok {
		t = &topic{subs: make(map[int]chan Event)}
		b.topics[batchID] = t
	}
	if t.closed {
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}

	b.closed = append(b.closed, batchID)
	for len(b.closed) > maxClosedTopics {
		delete(b.topics, b.closed[0])
		b.closed = b.closed[1:]
	}
}
