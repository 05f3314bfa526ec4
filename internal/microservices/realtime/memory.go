package realtime

import (
	"context"
	"sync"
)

const memorySubscriberBuffer = 64

// MemoryTransport is an in-process Transport for tests and single-node
// development. Delivery is best-effort: a subscriber that cannot keep up has
// messages dropped, matching the contract real brokers expose here.
type MemoryTransport struct {
	mu   sync.RWMutex
	subs map[string]map[*memorySubscription]struct{} // channel -> subscribers
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		subs: make(map[string]map[*memorySubscription]struct{}),
	}
}

func (t *MemoryTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for sub := range t.subs[channel] {
		select {
		case sub.events <- Message{Channel: channel, Payload: payload}:
		default:
			// slow subscriber, drop rather than block the publisher
		}
	}
	return nil
}

func (t *MemoryTransport) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	sub := &memorySubscription{
		transport: t,
		channels:  channels,
		events:    make(chan Message, memorySubscriberBuffer),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range channels {
		if t.subs[ch] == nil {
			t.subs[ch] = make(map[*memorySubscription]struct{})
		}
		t.subs[ch][sub] = struct{}{}
	}
	return sub, nil
}

// SubscriberCount returns how many subscriptions a channel currently has.
func (t *MemoryTransport) SubscriberCount(channel string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs[channel])
}

type memorySubscription struct {
	transport *MemoryTransport
	channels  []string
	events    chan Message
	closeOnce sync.Once
}

func (s *memorySubscription) Events() <-chan Message {
	return s.events
}

func (s *memorySubscription) Close() error {
	s.closeOnce.Do(func() {
		s.transport.mu.Lock()
		for _, ch := range s.channels {
			delete(s.transport.subs[ch], s)
			if len(s.transport.subs[ch]) == 0 {
				delete(s.transport.subs, ch)
			}
		}
		s.transport.mu.Unlock()
		close(s.events)
	})
	return nil
}
