// Package logging provides structured logging for the shadow agent.
//
// It wraps log/slog so every entry carries the same default fields
// (service, version and, once configured, the thing name).
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version, cfg.Device.ThingName)
//	logger.Component("shadow").Info("report published", "range", "SECO")
//
// Never log the device private key, MQTT password or InfluxDB token.
package logging
