// Package config handles loading and validating shadow agent configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The device private key is referenced by path, never embedded in YAML
//   - Secrets (MQTT password, InfluxDB token) should come from the environment
//     or a .env file loaded by the CLI before Load is called
//
// Usage:
//
//	cfg, err := config.Load("configs/shadow-agent.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.ThingName)
package config
