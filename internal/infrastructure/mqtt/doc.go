// Package mqtt provides the broker session for the device shadow.
//
// This package manages:
//   - Mutual-TLS connection with fixed-interval, unlimited reconnection
//   - Non-blocking publishing (local acceptance only)
//   - Subscription tracking with restoration on every connect
//   - Shadow topic naming for a thing
//
// # Architecture
//
//	Agent loop ← shadow.Inbox ← paho delivery goroutine ← Broker
//	Agent loop → Client.Publish → paho writer → Broker
//
// Handlers registered with Subscribe must only enqueue; all shadow state is
// owned by the agent loop.
//
// # Usage
//
//	client, err := mqtt.New(cfg.MQTT, cfg.ClientID())
//	if err != nil {
//	    return err
//	}
//	topics := mqtt.Topics{Thing: cfg.Device.ThingName}
//	client.SetOnConnect(func() { inbox.Push(...) })
//	for _, topic := range topics.Inbound() {
//	    client.Subscribe(topic, 1, handler)
//	}
//	if err := client.Connect(ctx); err != nil && !errors.Is(err, mqtt.ErrTimeout) {
//	    return err
//	}
//	defer client.Close()
package mqtt
