// Package eventbus implements topic-based in-process publish/subscribe. It is
// the default transport for scoring traffic when every participant lives in
// one process.
package eventbus

import "sync"

// Bus fans messages out to per-topic subscriber channels.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription
	buffer int
	closed bool
}

// Subscription is a handle to one subscriber's delivery channel.
type Subscription struct {
	bus   *Bus
	topic string
	ch    chan any
}

// Option configures a Bus.
type Option func(*Bus)

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// New creates an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{subs: make(map[string][]*Subscription), buffer: 64}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Publish sends msg to all subscribers of topic. Delivery is non-blocking; a
// subscriber whose buffer is full misses the message, which the orchestration
// layer treats as a permanent non-response.
func (b *Bus) Publish(topic string, msg any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, s := range b.subs[topic] {
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber for topic.
func (b *Bus) Subscribe(topic string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	s := &Subscription{bus: b, topic: topic, ch: make(chan any, b.buffer)}
	b.subs[topic] = append(b.subs[topic], s)
	return s, nil
}

// Close closes every subscriber channel and rejects further use.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, s := range subs {
			close(s.ch)
		}
	}
	b.subs = nil
	return nil
}

// C returns the subscriber's delivery channel.
func (s *Subscription) C() <-chan any { return s.ch }

// Cancel removes the subscriber and closes its channel.
func (s *Subscription) Cancel() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	list := b.subs[s.topic]
	for i, cur := range list {
		if cur == s {
			b.subs[s.topic] = append(list[:i], list[i+1:]...)
			close(s.ch)
			return
		}
	}
}
