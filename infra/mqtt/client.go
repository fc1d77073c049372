// Package mqtt provides a same-host MQTT implementation of the scoring
// transport. Messages are JSON-encoded; the topic determines the concrete
// message type on receive. The in-process bus remains the default transport,
// this one exists for deployments that split the gateway from the scoring
// loop across processes on one machine.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/feaslabs/feasly/core/model"
	"github.com/feaslabs/feasly/core/transport"
	"github.com/feaslabs/feasly/infra/logger"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Client is a transport.Bus backed by an MQTT broker.
type Client struct {
	cli pahoClient
	qos byte
	log logger.Logger

	mu   sync.Mutex
	subs map[string][]*subscription
}

type subscription struct {
	client *Client
	topic  string
	ch     chan any
	once   sync.Once
}

func (s *subscription) C() <-chan any { return s.ch }

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.client.removeSub(s)
		close(s.ch)
	})
}

// NewClient connects to the broker.
func NewClient(cfg Config) (*Client, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt-transport")
	c := &Client{qos: cfg.QoS, log: log, subs: make(map[string][]*subscription)}
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
		c.resubscribe()
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	c.cli = cli
	return c, nil
}

// Publish JSON-encodes msg onto topic.
func (c *Client) Publish(topic string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	if token := c.cli.Publish(topic, c.qos, false, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Subscribe registers a broker subscription for topic; messages are decoded
// into the message type the topic carries before delivery.
func (c *Client) Subscribe(topic string) (transport.Subscription, error) {
	sub := &subscription{client: c, topic: topic, ch: make(chan any, 64)}
	c.mu.Lock()
	first := len(c.subs[topic]) == 0
	c.subs[topic] = append(c.subs[topic], sub)
	c.mu.Unlock()

	if first {
		if token := c.cli.Subscribe(topic, c.qos, c.onMessage); token.Wait() && token.Error() != nil {
			c.removeSub(sub)
			return nil, token.Error()
		}
	}
	return sub, nil
}

// Close disconnects from the broker and closes all subscription channels.
func (c *Client) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string][]*subscription)
	c.mu.Unlock()
	for _, list := range subs {
		for _, s := range list {
			s.once.Do(func() { close(s.ch) })
		}
	}
	c.cli.Disconnect(250)
	return nil
}

func (c *Client) onMessage(_ paho.Client, m paho.Message) {
	msg, err := decodeTopic(m.Topic(), m.Payload())
	if err != nil {
		c.log.Errorf("decode %s: %v", m.Topic(), err)
		return
	}
	c.mu.Lock()
	list := append([]*subscription(nil), c.subs[m.Topic()]...)
	c.mu.Unlock()
	for _, s := range list {
		select {
		case s.ch <- msg:
		default:
			c.log.Warnf("subscriber backlog on %s, dropping message", m.Topic())
		}
	}
}

func (c *Client) removeSub(sub *subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.subs[sub.topic]
	for i, cur := range list {
		if cur == sub {
			c.subs[sub.topic] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(c.subs[sub.topic]) == 0 {
		delete(c.subs, sub.topic)
		if c.cli != nil && c.cli.IsConnected() {
			c.cli.Unsubscribe(sub.topic)
		}
	}
}

func (c *Client) resubscribe() {
	c.mu.Lock()
	topics := make([]string, 0, len(c.subs))
	for t := range c.subs {
		topics = append(topics, t)
	}
	c.mu.Unlock()
	for _, t := range topics {
		if token := c.cli.Subscribe(t, c.qos, c.onMessage); token.Wait() && token.Error() != nil {
			c.log.Errorf("resubscribe %s: %v", t, token.Error())
		}
	}
}

// decodeTopic maps a topic to its concrete message type.
func decodeTopic(topic string, payload []byte) (any, error) {
	switch {
	case topic == transport.TopicRequests:
		var m model.ScoringRequest
		err := json.Unmarshal(payload, &m)
		return m, err
	case topic == transport.TopicResults:
		var m model.DimensionResult
		err := json.Unmarshal(payload, &m)
		return m, err
	case strings.HasPrefix(topic, "feasly/dimension/"):
		var m model.DimensionRequest
		err := json.Unmarshal(payload, &m)
		return m, err
	case strings.HasPrefix(topic, transport.TopicAggregate):
		var m model.AggregateResult
		err := json.Unmarshal(payload, &m)
		return m, err
	default:
		return nil, fmt.Errorf("unroutable topic %s", topic)
	}
}
