// Package shadow implements device shadow synchronisation for the planter.
//
// The engine is split into a pure Reducer, which folds inbound events
// (delta, get and update responses, connection and publish feedback) into
// an EngineState value and returns Intents, and a Detector, which decides
// once per tick whether a humidity bucket change should be reported.
// Neither touches the network, the servo or a clock; the agent loop
// supplies an Observation and executes the returned intents in order.
//
// Inbound MQTT messages are decoded once by a Decoder and queued in a
// bounded Inbox. The loop drains the inbox once per tick, so event handling
// and spontaneous reporting never interleave.
//
// Version rules:
//   - delta and update/accepted overwrite the known version
//   - get/accepted only advances it, or sets it while it is still unknown
//   - nothing else changes it
package shadow
