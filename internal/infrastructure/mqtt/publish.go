package mqtt

import (
	"fmt"
)

// Maximum payload size accepted by the shadow service (8KB document limit plus envelope).
const maxPayloadSize = 128 * 1024

// Publish hands a message to the paho client and returns without waiting
// for the broker acknowledgment.
//
// A nil error means local acceptance only: the packet is queued for the
// writer. End-to-end confirmation for shadow updates arrives later on the
// update/accepted or update/rejected topic. Late delivery failures are logged.
//
// Parameters:
//   - topic: The topic to publish to (e.g., Topics{Thing: "planter-01"}.Update())
//   - payload: The message payload (JSON)
//   - qos: Quality of Service level (0 or 1)
//   - retained: Must be false for shadow topics
//
// Example:
//
//	err := client.Publish(topics.Get(), []byte(`{}`), 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)

	// paho completes the token synchronously when it rejects the publish
	// outright (e.g. the connection dropped since IsConnected).
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		return nil
	default:
	}

	go c.watchToken(token, "MQTT publish not delivered", "topic", topic)
	return nil
}

// PublishDefault publishes a non-retained message with the configured QoS.
func (c *Client) PublishDefault(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), false)
}
