package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the shadow agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Shadow   ShadowConfig   `yaml:"shadow"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Servo    ServoConfig    `yaml:"servo"`
	Boot     BootConfig     `yaml:"boot"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies the thing whose shadow is mirrored.
type DeviceConfig struct {
	// ThingName is the shadow service thing name. All seven shadow topics
	// are derived from it.
	ThingName string `yaml:"thing_name"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	TLS       MQTTTLSConfig       `yaml:"tls"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains optional username/password credentials.
// The shadow service normally authenticates with client certificates instead.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTLSConfig contains the mutual-TLS material for the broker session.
type MQTTTLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CAFile   string `yaml:"ca_file"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
// Reconnection is retried forever on a fixed interval.
type MQTTReconnectConfig struct {
	Interval       time.Duration `yaml:"interval"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// ShadowConfig tunes the synchronisation loop.
type ShadowConfig struct {
	// TickInterval is the control loop period.
	TickInterval time.Duration `yaml:"tick_interval"`

	// MinReportInterval is the minimum spacing between spontaneous
	// humidity-range reports.
	MinReportInterval time.Duration `yaml:"min_report_interval"`

	// GetRetryInterval is how often a GET is re-issued while the shadow
	// version is still unknown.
	GetRetryInterval time.Duration `yaml:"get_retry_interval"`

	// QueueSize bounds the inbound message queue drained once per tick.
	QueueSize int `yaml:"queue_size"`
}

// SensorConfig selects and calibrates the soil moisture source.
type SensorConfig struct {
	// Driver is "sim" (simulated random walk) or "iio" (sysfs ADC file).
	Driver string `yaml:"driver"`

	// Path is the sysfs raw-value file for the iio driver,
	// e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
	Path string `yaml:"path"`

	// DryValue and WetValue are the raw readings that map to 0% and 100%.
	DryValue int `yaml:"dry_value"`
	WetValue int `yaml:"wet_value"`
}

// ServoConfig selects the actuator driver and its canonical poses.
type ServoConfig struct {
	// Driver is "memory" or "pwm" (sysfs PWM channel).
	Driver string `yaml:"driver"`

	// PWMPath is the sysfs PWM channel directory, e.g. /sys/class/pwm/pwmchip0/pwm0.
	PWMPath string `yaml:"pwm_path"`

	// MinPulseUS and MaxPulseUS are the pulse widths for 0 and 180 degrees.
	MinPulseUS int `yaml:"min_pulse_us"`
	MaxPulseUS int `yaml:"max_pulse_us"`

	HappyAngle   int `yaml:"happy_angle"`
	SadAngle     int `yaml:"sad_angle"`
	NeutralAngle int `yaml:"neutral_angle"`
}

// BootConfig bounds the blocking preconditions checked at startup.
type BootConfig struct {
	Attempts int           `yaml:"attempts"`
	Interval time.Duration `yaml:"interval"`

	// ProbeHost is resolved to confirm network association.
	// Defaults to the MQTT broker host.
	ProbeHost string `yaml:"probe_host"`
}

// DatabaseConfig contains SQLite journal settings.
type DatabaseConfig struct {
	Path        string        `yaml:"path"`
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout int           `yaml:"busy_timeout"`
	Retention   time.Duration `yaml:"retention"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	Token          string        `yaml:"token"`
	Org            string        `yaml:"org"`
	Bucket         string        `yaml:"bucket"`
	BatchSize      int           `yaml:"batch_size"`
	FlushInterval  int           `yaml:"flush_interval"`
	SampleInterval time.Duration `yaml:"sample_interval"`
}

// APIConfig contains the local status server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SHADOWAGENT_SECTION_KEY
// For example: SHADOWAGENT_THING_NAME, SHADOWAGENT_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the defaults used before the YAML file is applied.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Port: 8883,
			},
			TLS: MQTTTLSConfig{
				Enabled: true,
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				Interval:       5 * time.Second,
				ConnectTimeout: 10 * time.Second,
			},
		},
		Shadow: ShadowConfig{
			TickInterval:      100 * time.Millisecond,
			MinReportInterval: 10 * time.Second,
			GetRetryInterval:  60 * time.Second,
			QueueSize:         32,
		},
		Sensor: SensorConfig{
			Driver:   "sim",
			DryValue: 3200,
			WetValue: 1300,
		},
		Servo: ServoConfig{
			Driver:       "memory",
			MinPulseUS:   500,
			MaxPulseUS:   2500,
			HappyAngle:   180,
			SadAngle:     0,
			NeutralAngle: 90,
		},
		Boot: BootConfig{
			Attempts: 20,
			Interval: 500 * time.Millisecond,
		},
		Database: DatabaseConfig{
			Path:        "./data/shadow-agent.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   7 * 24 * time.Hour,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:      100,
			FlushInterval:  10,
			SampleInterval: 30 * time.Second,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8081,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHADOWAGENT_THING_NAME"); v != "" {
		cfg.Device.ThingName = v
	}

	// MQTT
	if v := os.Getenv("SHADOWAGENT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SHADOWAGENT_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("SHADOWAGENT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SHADOWAGENT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("SHADOWAGENT_MQTT_CA_FILE"); v != "" {
		cfg.MQTT.TLS.CAFile = v
	}
	if v := os.Getenv("SHADOWAGENT_MQTT_CERT_FILE"); v != "" {
		cfg.MQTT.TLS.CertFile = v
	}
	if v := os.Getenv("SHADOWAGENT_MQTT_KEY_FILE"); v != "" {
		cfg.MQTT.TLS.KeyFile = v
	}

	if v := os.Getenv("SHADOWAGENT_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("SHADOWAGENT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("SHADOWAGENT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ThingName == "" {
		errs = append(errs, "device.thing_name is required")
	} else if strings.ContainsAny(c.Device.ThingName, "/#+ ") {
		errs = append(errs, "device.thing_name must not contain '/', '#', '+' or spaces")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 1 {
		// The shadow service does not support QoS 2.
		errs = append(errs, "mqtt.qos must be 0 or 1")
	}
	if c.MQTT.TLS.Enabled && (c.MQTT.TLS.CertFile == "") != (c.MQTT.TLS.KeyFile == "") {
		errs = append(errs, "mqtt.tls.cert_file and mqtt.tls.key_file must be set together")
	}
	if c.MQTT.Reconnect.Interval <= 0 {
		errs = append(errs, "mqtt.reconnect.interval must be positive")
	}

	if c.Shadow.TickInterval <= 0 {
		errs = append(errs, "shadow.tick_interval must be positive")
	}
	if c.Shadow.MinReportInterval < 0 {
		errs = append(errs, "shadow.min_report_interval must not be negative")
	}
	if c.Shadow.GetRetryInterval <= 0 {
		errs = append(errs, "shadow.get_retry_interval must be positive")
	}
	if c.Shadow.QueueSize < 1 {
		errs = append(errs, "shadow.queue_size must be at least 1")
	}

	switch c.Sensor.Driver {
	case "sim":
	case "iio":
		if c.Sensor.Path == "" {
			errs = append(errs, "sensor.path is required for the iio driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("sensor.driver %q is not supported (sim, iio)", c.Sensor.Driver))
	}
	if c.Sensor.DryValue == c.Sensor.WetValue {
		errs = append(errs, "sensor.dry_value and sensor.wet_value must differ")
	}

	switch c.Servo.Driver {
	case "memory":
	case "pwm":
		if c.Servo.PWMPath == "" {
			errs = append(errs, "servo.pwm_path is required for the pwm driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("servo.driver %q is not supported (memory, pwm)", c.Servo.Driver))
	}
	if c.Servo.MinPulseUS >= c.Servo.MaxPulseUS {
		errs = append(errs, "servo.min_pulse_us must be below servo.max_pulse_us")
	}
	for name, angle := range map[string]int{
		"happy_angle":   c.Servo.HappyAngle,
		"sad_angle":     c.Servo.SadAngle,
		"neutral_angle": c.Servo.NeutralAngle,
	} {
		if angle < 0 || angle > 180 {
			errs = append(errs, fmt.Sprintf("servo.%s must be between 0 and 180", name))
		}
	}
	if c.Servo.HappyAngle == c.Servo.SadAngle || c.Servo.HappyAngle == c.Servo.NeutralAngle ||
		c.Servo.SadAngle == c.Servo.NeutralAngle {
		errs = append(errs, "servo poses must use three distinct angles")
	}

	if c.Boot.Attempts < 1 {
		errs = append(errs, "boot.attempts must be at least 1")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ProbeHost returns the host resolved during the boot network check.
func (c *Config) ProbeHost() string {
	if c.Boot.ProbeHost != "" {
		return c.Boot.ProbeHost
	}
	return c.MQTT.Broker.Host
}

// ClientID returns the MQTT client identifier, defaulting to the thing name
// as the shadow service policy usually requires.
func (c *Config) ClientID() string {
	if c.MQTT.Broker.ClientID != "" {
		return c.MQTT.Broker.ClientID
	}
	return c.Device.ThingName
}

// GetReadTimeout returns the API read timeout as a time.Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a time.Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a time.Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
