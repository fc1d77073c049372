// Package transport defines the message-passing substrate the orchestrator,
// specialists and gateway exchange scoring traffic through. The core only
// depends on the guarantees stated here: per-topic arrival-order delivery to
// each subscriber, no ordering across topics, and delivery that may fail
// permanently (which degrades to the orchestrator's partial-timeout path).
package transport

// Topic names used for scoring traffic. Dimension request topics are derived
// with DimensionTopic so each specialist owns exactly one subscription.
const (
	TopicRequests  = "feasly/requests"
	TopicResults   = "feasly/results"
	TopicAggregate = "feasly/aggregate"
)

// DimensionTopic returns the fan-out topic for one scoring dimension.
func DimensionTopic(dimension string) string {
	return "feasly/dimension/" + dimension
}

// Subscription is a handle to an active topic subscription.
type Subscription interface {
	// C delivers messages in arrival order. The channel is closed when the
	// subscription is cancelled or the bus shuts down.
	C() <-chan any
	// Cancel stops delivery and releases the subscription.
	Cancel()
}

// Bus moves typed messages between addressable participants.
type Bus interface {
	// Publish delivers msg to every current subscriber of topic. It must not
	// block on slow subscribers.
	Publish(topic string, msg any) error
	// Subscribe registers interest in a topic.
	Subscribe(topic string) (Subscription, error)
	// Close releases the bus; all subscription channels are closed.
	Close() error
}
