package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/feaslabs/feasly/core/model"
	"github.com/feaslabs/feasly/core/transport"
	"github.com/feaslabs/feasly/infra/logger"
)

type mockClient struct {
	Disconnected bool
	Published    map[string][]byte
	Handlers     map[string]paho.MessageHandler
	Unsubscribed []string
}

func newMockClient() *mockClient {
	return &mockClient{
		Published: make(map[string][]byte),
		Handlers:  make(map[string]paho.MessageHandler),
	}
}

func (m *mockClient) IsConnected() bool       { return true }
func (m *mockClient) Connect() paho.Token     { return &mockToken{} }
func (m *mockClient) Disconnect(quiesce uint) { m.Disconnected = true }
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.Published[topic] = payload.([]byte)
	return &mockToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	m.Handlers[topic] = callback
	return &mockToken{}
}
func (m *mockClient) Unsubscribe(topics ...string) paho.Token {
	m.Unsubscribed = append(m.Unsubscribed, topics...)
	return &mockToken{}
}

type mockToken struct{}

func (t *mockToken) Wait() bool                       { return true }
func (t *mockToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *mockToken) Error() error                     { return nil }
func (t *mockToken) Done() <-chan struct{}            { return make(chan struct{}) }

type mockMessage struct {
	topic   string
	payload []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.payload }
func (m mockMessage) Ack()              {}

func newTestClient(mc *mockClient) *Client {
	return &Client{cli: mc, log: logger.NopLogger{}, subs: make(map[string][]*subscription)}
}

func TestPublish_EncodesJSON(t *testing.T) {
	mc := newMockClient()
	client := newTestClient(mc)

	res := model.DimensionResult{JobID: "j1", Dimension: model.DimCost, Score: 42.5}
	if err := client.Publish(transport.TopicResults, res); err != nil {
		t.Fatalf("publish: %v", err)
	}
	var decoded model.DimensionResult
	if err := json.Unmarshal(mc.Published[transport.TopicResults], &decoded); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if decoded != res {
		t.Errorf("round trip = %+v, want %+v", decoded, res)
	}
}

func TestSubscribe_DecodesByTopic(t *testing.T) {
	mc := newMockClient()
	client := newTestClient(mc)

	sub, err := client.Subscribe(transport.TopicRequests)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	handler, ok := mc.Handlers[transport.TopicRequests]
	if !ok {
		t.Fatal("no broker subscription registered")
	}

	payload, _ := json.Marshal(model.ScoringRequest{Title: "t", Summary: "s", CorrID: "c9"})
	handler(nil, mockMessage{topic: transport.TopicRequests, payload: payload})

	select {
	case msg := <-sub.C():
		req, ok := msg.(model.ScoringRequest)
		if !ok {
			t.Fatalf("delivered %T, want ScoringRequest", msg)
		}
		if req.CorrID != "c9" {
			t.Errorf("corr_id = %q", req.CorrID)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestSubscribe_DimensionTopic(t *testing.T) {
	mc := newMockClient()
	client := newTestClient(mc)

	topic := transport.DimensionTopic("tech")
	sub, err := client.Subscribe(topic)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	payload, _ := json.Marshal(model.DimensionRequest{JobID: "j2", Dimension: model.DimTech})
	mc.Handlers[topic](nil, mockMessage{topic: topic, payload: payload})

	select {
	case msg := <-sub.C():
		req := msg.(model.DimensionRequest)
		if req.JobID != "j2" || req.Dimension != model.DimTech {
			t.Errorf("unexpected request: %+v", req)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestSubscribe_SecondSubscriberReusesBrokerSub(t *testing.T) {
	mc := newMockClient()
	client := newTestClient(mc)

	if _, err := client.Subscribe(transport.TopicResults); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	delete(mc.Handlers, transport.TopicResults)
	if _, err := client.Subscribe(transport.TopicResults); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, resubscribed := mc.Handlers[transport.TopicResults]; resubscribed {
		t.Error("second subscriber re-registered with the broker")
	}
}

func TestCancel_LastSubscriberUnsubscribes(t *testing.T) {
	mc := newMockClient()
	client := newTestClient(mc)

	a, _ := client.Subscribe(transport.TopicResults)
	b, _ := client.Subscribe(transport.TopicResults)

	a.Cancel()
	if len(mc.Unsubscribed) != 0 {
		t.Fatal("unsubscribed while a subscriber remained")
	}
	b.Cancel()
	if len(mc.Unsubscribed) != 1 || mc.Unsubscribed[0] != transport.TopicResults {
		t.Errorf("unsubscribed = %v", mc.Unsubscribed)
	}
}

func TestClose_DisconnectsClient(t *testing.T) {
	mc := newMockClient()
	client := newTestClient(mc)
	sub, _ := client.Subscribe(transport.TopicAggregate)

	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !mc.Disconnected {
		t.Error("expected Disconnect() to be called")
	}
	if _, ok := <-sub.C(); ok {
		t.Error("subscription channel open after close")
	}
}

func TestDecodeTopic_Unroutable(t *testing.T) {
	if _, err := decodeTopic("some/other/topic", []byte(`{}`)); err == nil {
		t.Error("expected error for unroutable topic")
	}
}
