package broadcast

import "sync"

// subscriberBufferSize bounds how far a slow client may fall behind
// before events are dropped for it.
const subscriberBufferSize = 16

// Broker fans events out to every subscriber of a topic. Delivery is
// best-effort: a subscriber whose buffer is full misses the event, and
// there is no replay for subscribers that were not connected when it
// was published.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string]map[chan Event]struct{}),
	}
}

func (b *Broker) Subscribe(topic string) chan Event {
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[chan Event]struct{})
		b.topics[topic] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	subs, ok := b.topics[topic]
	if ok {
		if _, subscribed := subs[ch]; subscribed {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(b.topics, topic)
		}
	}
	b.mu.Unlock()
}

// Publish sends the event to every current subscriber of the topic
// without blocking the caller.
func (b *Broker) Publish(topic string, ev Event) {
	b.mu.RLock()
	for ch := range b.topics[topic] {
		select {
		case ch <- ev:
		default:
		}
	}
	b.mu.RUnlock()
}

func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
