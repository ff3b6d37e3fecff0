package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/freebox-bridge/internal/infrastructure/mqtt"
)

// fakeMQTT implements MQTTClient, capturing the command handler and
// signalling published results over a channel.
type fakeMQTT struct {
	mu            sync.Mutex
	subscriptions map[string]mqtt.MessageHandler
	published     []publishedMessage
	results       chan ResultMessage
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{
		subscriptions: make(map[string]mqtt.MessageHandler),
		results:       make(chan ResultMessage, 8),
	}
}

func (f *fakeMQTT) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	f.published = append(f.published, publishedMessage{topic, payload, qos, retained})
	f.mu.Unlock()

	if strings.HasPrefix(topic, TopicPrefix+"/result/") {
		var result ResultMessage
		if err := json.Unmarshal(payload, &result); err == nil {
			f.results <- result
		}
	}
	return nil
}

func (f *fakeMQTT) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions[topic] = handler
	return nil
}

func (f *fakeMQTT) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscriptions, topic)
	return nil
}

func (f *fakeMQTT) IsConnected() bool { return true }

func (f *fakeMQTT) handler(t *testing.T, topic string) mqtt.MessageHandler {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.subscriptions[topic]
	if !ok {
		t.Fatalf("no subscription on %s", topic)
	}
	return h
}

func (f *fakeMQTT) awaitResult(t *testing.T) ResultMessage {
	t.Helper()
	select {
	case result := <-f.results:
		return result
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a command result")
		return ResultMessage{}
	}
}

func newTestBridge(t *testing.T, broker *fakeMQTT, action *fakeActionClient) *Bridge {
	t.Helper()
	coord := newTestCoordinator(newFakeClient(), broker)
	return New(BridgeOptions{
		MQTT:        broker,
		Coordinator: coord,
		Dispatcher:  NewDispatcher(action, time.Second, nil),
		QoS:         1,
	})
}

func TestBridgeCommandRoundTrip(t *testing.T) {
	broker := newFakeMQTT()
	action := &fakeActionClient{}
	b := newTestBridge(t, broker, action)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Stop()

	payload, _ := json.Marshal(CommandMessage{
		ID:         "round-trip-1",
		Action:     ActionSetWifi,
		Parameters: map[string]any{"enabled": false},
	})
	if err := broker.handler(t, CommandTopic())(CommandTopic(), payload); err != nil {
		t.Fatalf("handler: %v", err)
	}

	result := broker.awaitResult(t)
	if result.CommandID != "round-trip-1" {
		t.Errorf("command id = %q, want round-trip-1", result.CommandID)
	}
	if result.Status != StatusOK {
		t.Errorf("status = %s, want ok (error: %s)", result.Status, result.Error)
	}
	if action.wifiEnabled {
		t.Error("wifi should have been disabled")
	}
}

func TestBridgeMalformedCommandAnswered(t *testing.T) {
	broker := newFakeMQTT()
	b := newTestBridge(t, broker, &fakeActionClient{})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Stop()

	if err := broker.handler(t, CommandTopic())(CommandTopic(), []byte("{not json")); err != nil {
		t.Fatalf("handler: %v", err)
	}

	result := broker.awaitResult(t)
	if result.Status != StatusFailed || result.ErrorCode != ErrCodeInvalidPayload {
		t.Errorf("got (%s, %s), want (failed, %s)", result.Status, result.ErrorCode, ErrCodeInvalidPayload)
	}
	if result.CommandID == "" {
		t.Error("a malformed command still needs a correlation id")
	}
}

func TestBridgeAssignsMissingCommandID(t *testing.T) {
	broker := newFakeMQTT()
	b := newTestBridge(t, broker, &fakeActionClient{})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Stop()

	payload, _ := json.Marshal(CommandMessage{Action: ActionReboot})
	if err := broker.handler(t, CommandTopic())(CommandTopic(), payload); err != nil {
		t.Fatalf("handler: %v", err)
	}

	result := broker.awaitResult(t)
	if result.CommandID == "" {
		t.Error("bridge should assign an id when the command has none")
	}
}

func TestBridgeSuccessfulMutationRefreshesSnapshot(t *testing.T) {
	broker := newFakeMQTT()
	b := newTestBridge(t, broker, &fakeActionClient{})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Stop()

	payload, _ := json.Marshal(CommandMessage{
		ID:         "refresh-1",
		Action:     ActionSetWifi,
		Parameters: map[string]any{"enabled": true},
	})
	if err := broker.handler(t, CommandTopic())(CommandTopic(), payload); err != nil {
		t.Fatalf("handler: %v", err)
	}
	broker.awaitResult(t)
	b.Stop() // waits for the post-command poll

	// One snapshot from startup, one forced by the mutation.
	broker.mu.Lock()
	var snapshots int
	for _, m := range broker.published {
		if m.topic == SnapshotTopic() {
			snapshots++
		}
	}
	broker.mu.Unlock()
	if snapshots < 2 {
		t.Errorf("published %d snapshots, want at least 2", snapshots)
	}
}

func TestBridgeDropsCommandDeliveredAfterStop(t *testing.T) {
	broker := newFakeMQTT()
	action := &fakeActionClient{}
	b := newTestBridge(t, broker, action)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	// The broker may still deliver a queued message after Unsubscribe,
	// so keep a handle on the handler before stopping.
	handler := broker.handler(t, CommandTopic())
	b.Stop()

	payload, _ := json.Marshal(CommandMessage{ID: "late-1", Action: ActionReboot})
	if err := handler(CommandTopic(), payload); err != nil {
		t.Fatalf("handler: %v", err)
	}

	select {
	case result := <-broker.results:
		t.Fatalf("got result %+v for a command delivered after stop", result)
	case <-time.After(50 * time.Millisecond):
	}
	if n := action.callCount(); n != 0 {
		t.Errorf("router called %d times after stop, want 0", n)
	}
}

func TestBridgeStopUnsubscribes(t *testing.T) {
	broker := newFakeMQTT()
	b := newTestBridge(t, broker, &fakeActionClient{})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	b.Stop()

	broker.mu.Lock()
	_, subscribed := broker.subscriptions[CommandTopic()]
	broker.mu.Unlock()
	if subscribed {
		t.Error("stop should drop the command subscription")
	}
}
