package events

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

const subscriberBuffer = 16

var _ Publisher = (*Broker)(nil)

// Broker delivers events to in-process subscribers keyed by entry, match or
// user id. A subscriber that falls behind misses events instead of stalling
// the publisher.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	closed bool
}

type subscription struct {
	key string
	ch  chan Event
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[*subscription]struct{})}
}

// Subscribe returns a channel of events for key and a cancel func that
// closes it. Cancel is safe to call more than once.
func (b *Broker) Subscribe(key string) (<-chan Event, func()) {
	sub := &subscription{key: key, ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	if b.subs[key] == nil {
		b.subs[key] = make(map[*subscription]struct{})
	}
	b.subs[key][sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() { b.remove(sub) })
	}
}

func (b *Broker) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.subs[sub.key]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.subs, sub.key)
	}
	close(sub.ch)
}

func (b *Broker) Publish(_ context.Context, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, key := range event.Keys() {
		for sub := range b.subs[key] {
			select {
			case sub.ch <- event:
			default:
				log.Warn("Dropping event for slow subscriber", "key", key, "kind", event.Kind)
			}
		}
	}
}

// Subscribers returns the number of live subscriptions for key.
func (b *Broker) Subscribers(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[key])
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, subs := range b.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(b.subs, key)
	}
	b.closed = true
}
