// Package bus adapts the in-process eventbus to the core transport contract.
// It is the default substrate when orchestrator, specialists and gateway all
// live in one process.
package bus

import (
	"github.com/feaslabs/feasly/core/transport"
	"github.com/feaslabs/feasly/internal/eventbus"
)

// InProc is a transport.Bus backed by the internal eventbus.
type InProc struct {
	bus *eventbus.Bus
}

// New creates an in-process bus. Buffers are sized generously relative to the
// five-message fan-out so scoring traffic is never dropped under normal load.
func New() *InProc {
	return &InProc{bus: eventbus.New(eventbus.WithBuffer(128))}
}

func (b *InProc) Publish(topic string, msg any) error {
	return b.bus.Publish(topic, msg)
}

func (b *InProc) Subscribe(topic string) (transport.Subscription, error) {
	return b.bus.Subscribe(topic)
}

func (b *InProc) Close() error { return b.bus.Close() }
