package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for messages on the given topic.
//
// The subscription is tracked internally and automatically restored if
// the connection drops and reconnects. Topic may contain MQTT wildcards
// (+ for single level, # for multi level).
//
// The handler is invoked in a separate goroutine for each message and
// is wrapped with panic recovery. Subscribing twice to the same topic
// replaces the previous handler.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}

	if qos > maxQoS {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}

	if handler == nil {
		return fmt.Errorf("%w: nil handler for topic %q", ErrSubscribeFailed, topic)
	}

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("%w: timeout subscribing to %q", ErrSubscribeFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrSubscribeFailed, topic, err)
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{
		topic:   topic,
		qos:     qos,
		handler: handler,
	}
	c.subMu.Unlock()

	return nil
}

// Unsubscribe removes the subscription for the given topic.
//
// The handler stops receiving messages and the subscription is no longer
// restored on reconnect. Unsubscribing from a topic that was never
// subscribed is not an error.
func (c *Client) Unsubscribe(topic string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("%w: timeout unsubscribing from %q", ErrUnsubscribeFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrUnsubscribeFailed, topic, err)
	}

	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()

	return nil
}

// SubscriptionCount returns the number of active subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription reports whether a subscription exists for the topic.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}
