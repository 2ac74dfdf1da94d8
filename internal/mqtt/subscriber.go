package mqtt

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// subscribe asks for the configured topic at QoS 0. A failure is logged and
// reported as EventSubscribeFailed; the connection stays usable and the
// subscription is not retried until the next reconnect.
func (c *Client) subscribe(ctx context.Context) {
	token := c.client.Subscribe(c.config.Topic, QoSAtMostOnce, c.handleMessage)

	timer := time.NewTimer(c.config.ConnectTimeout)
	defer timer.Stop()

	var err error
	select {
	case <-token.Done():
		err = token.Error()
	case <-timer.C:
		err = context.DeadlineExceeded
	case <-ctx.Done():
		return
	}

	if err != nil {
		terr := &TransportError{Op: "subscribe", Err: err}
		c.logger.Error("MQTT Client: Failed to subscribe", "topic", c.config.Topic, "error", err)
		c.emit(Event{Kind: EventSubscribeFailed, Topic: c.config.Topic, Err: terr})
		return
	}
	c.logger.Info("MQTT Client: Subscribed to topic", "topic", c.config.Topic)
}

// handleMessage forwards a raw payload. Messages arriving after Stop has
// begun are discarded here, before they reach the event channel.
func (c *Client) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	if c.stopped.Load() {
		c.logger.Debug("MQTT Client: Discarding message after stop", "topic", msg.Topic())
		return
	}

	payload := append([]byte(nil), msg.Payload()...)
	c.logger.Debug("MQTT Client: Received message", "topic", msg.Topic(), "bytes", len(payload))

	c.emit(Event{
		Kind:    EventMessage,
		Topic:   msg.Topic(),
		Payload: payload,
		At:      time.Now(),
	})
}
