package mqtt

import (
	"fmt"
)

// maxPayloadSize is the maximum allowed payload size (1MB).
// Larger payloads are rejected to prevent broker overload.
const maxPayloadSize = 1024 * 1024

// Publish sends a message to the specified topic.
//
// Parameters:
//   - topic: MQTT topic to publish to (must not be empty or contain wildcards)
//   - payload: Message payload (max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain this message
//
// Returns an error if not connected, the topic or QoS is invalid, the
// payload exceeds the size limit, or the publish times out.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := validateTopic(topic); err != nil {
		return err
	}

	if qos > maxQoS {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}

	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d",
			ErrPublishFailed, len(payload), maxPayloadSize)
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// validateTopic checks that a publish topic is well formed.
// Publish topics must not be empty and must not contain wildcards.
func validateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}

	for _, ch := range topic {
		if ch == '+' || ch == '#' {
			return fmt.Errorf("%w: wildcards not allowed in publish topic %q", ErrInvalidTopic, topic)
		}
	}

	return nil
}
