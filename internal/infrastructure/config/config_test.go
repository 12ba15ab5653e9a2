package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  thing_name: "planter-01"
mqtt:
  broker:
    host: "abc123-ats.iot.eu-west-1.amazonaws.com"
    port: 8883
  tls:
    enabled: true
    ca_file: "/etc/shadow-agent/AmazonRootCA1.pem"
    cert_file: "/etc/shadow-agent/device.pem.crt"
    key_file: "/etc/shadow-agent/private.pem.key"
shadow:
  min_report_interval: 15s
  get_retry_interval: 2m
sensor:
  driver: sim
  dry_value: 3000
  wet_value: 1200
database:
  path: "/tmp/test.db"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.ThingName != "planter-01" {
		t.Errorf("Device.ThingName = %q, want %q", cfg.Device.ThingName, "planter-01")
	}
	if cfg.MQTT.TLS.CertFile != "/etc/shadow-agent/device.pem.crt" {
		t.Errorf("MQTT.TLS.CertFile = %q", cfg.MQTT.TLS.CertFile)
	}
	if cfg.Shadow.MinReportInterval != 15*time.Second {
		t.Errorf("Shadow.MinReportInterval = %v, want 15s", cfg.Shadow.MinReportInterval)
	}
	if cfg.Shadow.GetRetryInterval != 2*time.Minute {
		t.Errorf("Shadow.GetRetryInterval = %v, want 2m", cfg.Shadow.GetRetryInterval)
	}
	if cfg.Sensor.DryValue != 3000 || cfg.Sensor.WetValue != 1200 {
		t.Errorf("Sensor calibration = %d/%d, want 3000/1200", cfg.Sensor.DryValue, cfg.Sensor.WetValue)
	}

	// Unset values keep their defaults.
	if cfg.Shadow.TickInterval != 100*time.Millisecond {
		t.Errorf("Shadow.TickInterval = %v, want default 100ms", cfg.Shadow.TickInterval)
	}
	if cfg.Servo.NeutralAngle != 90 {
		t.Errorf("Servo.NeutralAngle = %d, want default 90", cfg.Servo.NeutralAngle)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
mqtt:
  broker:
    host: "localhost"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for empty device.thing_name, got nil")
	}
	if !strings.Contains(err.Error(), "device.thing_name") {
		t.Errorf("Load() error = %v, want mention of device.thing_name", err)
	}
}

func validConfig() *Config {
	cfg := Default()
	cfg.Device.ThingName = "planter-01"
	cfg.MQTT.Broker.Host = "localhost"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing thing name",
			mutate:  func(c *Config) { c.Device.ThingName = "" },
			wantErr: true,
		},
		{
			name:    "thing name with wildcard",
			mutate:  func(c *Config) { c.Device.ThingName = "planter/+" },
			wantErr: true,
		},
		{
			name:    "missing broker host",
			mutate:  func(c *Config) { c.MQTT.Broker.Host = "" },
			wantErr: true,
		},
		{
			name:    "QoS 2 unsupported",
			mutate:  func(c *Config) { c.MQTT.QoS = 2 },
			wantErr: true,
		},
		{
			name:    "cert without key",
			mutate:  func(c *Config) { c.MQTT.TLS.CertFile = "/etc/device.crt" },
			wantErr: true,
		},
		{
			name: "cert with key",
			mutate: func(c *Config) {
				c.MQTT.TLS.CertFile = "/etc/device.crt"
				c.MQTT.TLS.KeyFile = "/etc/device.key"
			},
			wantErr: false,
		},
		{
			name:    "zero queue size",
			mutate:  func(c *Config) { c.Shadow.QueueSize = 0 },
			wantErr: true,
		},
		{
			name:    "zero tick interval",
			mutate:  func(c *Config) { c.Shadow.TickInterval = 0 },
			wantErr: true,
		},
		{
			name:    "unknown sensor driver",
			mutate:  func(c *Config) { c.Sensor.Driver = "i2c" },
			wantErr: true,
		},
		{
			name:    "iio driver without path",
			mutate:  func(c *Config) { c.Sensor.Driver = "iio" },
			wantErr: true,
		},
		{
			name:    "identical calibration",
			mutate:  func(c *Config) { c.Sensor.WetValue = c.Sensor.DryValue },
			wantErr: true,
		},
		{
			name:    "pwm driver without path",
			mutate:  func(c *Config) { c.Servo.Driver = "pwm" },
			wantErr: true,
		},
		{
			name:    "pose out of range",
			mutate:  func(c *Config) { c.Servo.HappyAngle = 200 },
			wantErr: true,
		},
		{
			name:    "duplicate poses",
			mutate:  func(c *Config) { c.Servo.SadAngle = c.Servo.NeutralAngle },
			wantErr: true,
		},
		{
			name:    "zero boot attempts",
			mutate:  func(c *Config) { c.Boot.Attempts = 0 },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name: "api enabled with invalid port",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 70000
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestConfig_Fallbacks(t *testing.T) {
	cfg := validConfig()
	cfg.MQTT.Broker.Host = "broker.example.com"

	if got := cfg.ClientID(); got != "planter-01" {
		t.Errorf("ClientID() = %q, want thing name", got)
	}
	if got := cfg.ProbeHost(); got != "broker.example.com" {
		t.Errorf("ProbeHost() = %q, want broker host", got)
	}

	cfg.MQTT.Broker.ClientID = "custom-client"
	cfg.Boot.ProbeHost = "time.example.com"

	if got := cfg.ClientID(); got != "custom-client" {
		t.Errorf("ClientID() = %q, want %q", got, "custom-client")
	}
	if got := cfg.ProbeHost(); got != "time.example.com" {
		t.Errorf("ProbeHost() = %q, want %q", got, "time.example.com")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("SHADOWAGENT_THING_NAME", "planter-07")
	t.Setenv("SHADOWAGENT_DATABASE_PATH", "/custom/path.db")
	t.Setenv("SHADOWAGENT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("SHADOWAGENT_MQTT_PORT", "1883")
	t.Setenv("SHADOWAGENT_MQTT_USERNAME", "testuser")
	t.Setenv("SHADOWAGENT_MQTT_PASSWORD", "testpass")
	t.Setenv("SHADOWAGENT_MQTT_KEY_FILE", "/run/secrets/device.key")
	t.Setenv("SHADOWAGENT_API_HOST", "192.168.1.1")
	t.Setenv("SHADOWAGENT_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Device.ThingName != "planter-07" {
		t.Errorf("Device.ThingName = %q, want %q", cfg.Device.ThingName, "planter-07")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.MQTT.TLS.KeyFile != "/run/secrets/device.key" {
		t.Errorf("MQTT.TLS.KeyFile = %q", cfg.MQTT.TLS.KeyFile)
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("Default MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Reconnect.Interval != 5*time.Second {
		t.Errorf("Default MQTT.Reconnect.Interval = %v, want 5s", cfg.MQTT.Reconnect.Interval)
	}
	if cfg.Shadow.MinReportInterval != 10*time.Second {
		t.Errorf("Default Shadow.MinReportInterval = %v, want 10s", cfg.Shadow.MinReportInterval)
	}
	if cfg.Shadow.GetRetryInterval != 60*time.Second {
		t.Errorf("Default Shadow.GetRetryInterval = %v, want 60s", cfg.Shadow.GetRetryInterval)
	}
	if cfg.Boot.Attempts != 20 || cfg.Boot.Interval != 500*time.Millisecond {
		t.Errorf("Default Boot = %d x %v, want 20 x 500ms", cfg.Boot.Attempts, cfg.Boot.Interval)
	}
	if cfg.Servo.HappyAngle != 180 || cfg.Servo.SadAngle != 0 || cfg.Servo.NeutralAngle != 90 {
		t.Errorf("Default poses = %d/%d/%d, want 180/0/90",
			cfg.Servo.HappyAngle, cfg.Servo.SadAngle, cfg.Servo.NeutralAngle)
	}
}
